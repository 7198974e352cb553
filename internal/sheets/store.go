package sheets

import (
	"context"
	"fmt"
	"net/http"

	"supplies-portal/internal/platform/httpclient"
	"supplies-portal/internal/platform/logger"
	"supplies-portal/internal/tabular"
)

// Store exposes the worksheets of one spreadsheet as tabular tables.
type Store struct {
	client *Client
	log    logger.Logger
}

// Options configure NewStore.
type Options struct {
	ServiceAccountJSON string
	SpreadsheetID      string
	APIURL             string
	HTTP               *httpclient.Client
}

func NewStore(opts Options, log logger.Logger) (*Store, error) {
	if opts.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id is required")
	}
	account, err := ParseServiceAccount(opts.ServiceAccountJSON)
	if err != nil {
		return nil, err
	}

	hc := opts.HTTP
	if hc == nil {
		hc = httpclient.New(httpclient.DefaultTimeout)
	}
	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	api, err := httpclient.NewWithBaseURL(apiURL, hc.HTTP.Timeout)
	if err != nil {
		return nil, fmt.Errorf("sheets: %w", err)
	}
	api.HTTP = hc.HTTP

	tokens, err := NewTokenSource(account, hc)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return NewStoreWithClient(NewClient(api, tokens, opts.SpreadsheetID), log), nil
}

func NewStoreWithClient(client *Client, log logger.Logger) *Store {
	return &Store{client: client, log: log}
}

func (s *Store) Tables(ctx context.Context) ([]string, error) {
	titles, err := s.client.SheetTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list worksheets: %w", err)
	}
	return titles, nil
}

func (s *Store) Read(ctx context.Context, name string) (*tabular.Table, error) {
	values, err := s.client.Values(ctx, name)
	if err != nil {
		if missingSheet(err) {
			return nil, tabular.ErrTableNotFound
		}
		return nil, fmt.Errorf("failed to read worksheet %s: %w", name, err)
	}
	return tabular.FromValues(name, values), nil
}

// Write replaces the worksheet contents. Rows that existed before but are
// no longer present are overwritten with blanks in the same request.
func (s *Store) Write(ctx context.Context, name string, header []string, rows []tabular.Row) error {
	values, err := tabular.Values(header, rows)
	if err != nil {
		return err
	}

	existing, err := s.client.Values(ctx, name)
	if err != nil {
		if missingSheet(err) {
			return tabular.ErrTableNotFound
		}
		return fmt.Errorf("failed to read worksheet %s: %w", name, err)
	}

	width := len(header)
	for _, row := range existing {
		if len(row) > width {
			width = len(row)
		}
	}
	for i := range values {
		for len(values[i]) < width {
			values[i] = append(values[i], "")
		}
	}
	for len(values) < len(existing) {
		values = append(values, make([]string, width))
	}

	if err := s.client.Update(ctx, name, values); err != nil {
		if missingSheet(err) {
			return tabular.ErrTableNotFound
		}
		return fmt.Errorf("failed to write worksheet %s: %w", name, err)
	}

	s.log.Debug("worksheet written", logger.Fields{"worksheet": name, "rows": len(rows)})
	return nil
}

// The API answers 400 "Unable to parse range" for unknown sheet titles.
func missingSheet(err error) bool {
	return httpclient.IsStatus(err, http.StatusBadRequest) || httpclient.IsStatus(err, http.StatusNotFound)
}
