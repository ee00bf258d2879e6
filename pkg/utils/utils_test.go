package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		cc       string
		expected string
		wantErr  bool
	}{
		{name: "national leading zero", input: "0241234567", cc: "233", expected: "233241234567"},
		{name: "national with formatting", input: "024 123-4567", cc: "+233", expected: "233241234567"},
		{name: "plus prefix", input: "+233241234567", cc: "233", expected: "233241234567"},
		{name: "double zero prefix", input: "00233241234567", cc: "233", expected: "233241234567"},
		{name: "already international", input: "233241234567", cc: "233", expected: "233241234567"},
		{name: "other country passes through", input: "+14155550123", cc: "233", expected: "14155550123"},
		{name: "letters rejected", input: "02412abc67", cc: "233", wantErr: true},
		{name: "too short", input: "0241", cc: "233", wantErr: true},
		{name: "leading zero without country code", input: "0241234567", cc: "", wantErr: true},
		{name: "empty", input: "", cc: "233", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input, tt.cc)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMasking(t *testing.T) {
	assert.Equal(t, "********4567", MaskPhone("233241234567"))
	assert.Equal(t, "***", MaskPhone("123"))
	assert.Equal(t, "j***@example.com", MaskEmail("john@example.com"))
	assert.Equal(t, "****", MaskEmail("john"))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", FirstNonEmpty("", "  ", "b", "c"))
	assert.Equal(t, "", FirstNonEmpty("", " "))
}
