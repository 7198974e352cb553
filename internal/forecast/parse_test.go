package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "TRUE", " True ", "t", "1", "yes", "Y", "si", "Sì", "vero", "x", "on"} {
		assert.True(t, ParseBool(s), "%q should be true", s)
	}
	for _, s := range []string{"", "false", "0", "no", "off", "maybe", "2"} {
		assert.False(t, ParseBool(s), "%q should be false", s)
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2", "2"},
		{"2.5", "2.5"},
		{"2,5", "2.5"},
		{" 0,25 ", "0.25"},
		{"1.234,5", "1234.5"},
		{"1,234.5", "1234.5"},
		{"1 000", "1000"},
		{"1 000,75", "1000.75"},
		{"-3", "-3"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDecimal(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tt.want)), "got %s", got)
		})
	}
}

func TestParseDecimal_Invalid(t *testing.T) {
	_, err := ParseDecimal("")
	assert.ErrorIs(t, err, ErrEmptyValue)

	for _, s := range []string{"abc", "1,2,3", "1.2.3", "two"} {
		_, err := ParseDecimal(s)
		assert.Error(t, err, s)
	}
}

func TestParseFrequency(t *testing.T) {
	for in, want := range map[string]Frequency{
		"daily":       Daily,
		" Daily ":     Daily,
		"giornaliera": Daily,
		"weekly":      Weekly,
		"SETTIMANALE": Weekly,
	} {
		got, ok := ParseFrequency(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "monthly", "hourly"} {
		_, ok := ParseFrequency(in)
		assert.False(t, ok, in)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-03-09", "09/03/2024", "9/3/2024", "2024/03/09", "2024-03-09T18:30:00+01:00"} {
		got, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), "%s -> %s", s, got)
	}

	_, err := ParseDate("")
	assert.ErrorIs(t, err, ErrEmptyValue)
	_, err = ParseDate("March 9th")
	assert.Error(t, err)
}

func TestCountActiveDays(t *testing.T) {
	assert.Equal(t, 1, countActiveDays(""))
	assert.Equal(t, 1, countActiveDays(" , ,"))
	assert.Equal(t, 1, countActiveDays("mon"))
	assert.Equal(t, 3, countActiveDays("lun, mer ,ven"))
}
