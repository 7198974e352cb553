package tabular

import (
	"context"
	"sync"
)

// MemoryStore keeps worksheets in process memory. It backs local
// development runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	order  []string
	tables map[string]*Table
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*Table)}
}

// Put creates or replaces a worksheet.
func (m *MemoryStore) Put(t *Table) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[t.Name]; !ok {
		m.order = append(m.order, t.Name)
	}
	m.tables[t.Name] = t.Clone()
}

func (m *MemoryStore) Tables(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...), nil
}

func (m *MemoryStore) Read(ctx context.Context, name string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[name]
	if !ok {
		return nil, ErrTableNotFound
	}
	return t.Clone(), nil
}

func (m *MemoryStore) Write(ctx context.Context, name string, header []string, rows []Row) error {
	values, err := Values(header, rows)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[name]; !ok {
		return ErrTableNotFound
	}
	m.tables[name] = FromValues(name, values)
	return nil
}
