package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRiskLevel(t *testing.T) {
	tests := []struct {
		in   string
		want RiskLevel
	}{
		{"low", RiskLow},
		{"MEDIUM", RiskMedium},
		{" High ", RiskHigh},
	}
	for _, tt := range tests {
		got, err := ParseRiskLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseRiskLevel("critical")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "risk", ve.Field)
}

func TestRiskRankOrdering(t *testing.T) {
	assert.Less(t, RiskRank[RiskLow], RiskRank[RiskMedium])
	assert.Less(t, RiskRank[RiskMedium], RiskRank[RiskHigh])
}

func TestParseAction(t *testing.T) {
	for _, in := range []string{"approve", "Reject", "EDIT"} {
		_, err := ParseAction(in)
		assert.NoError(t, err, in)
	}

	_, err := ParseAction("pending")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestFormatTimeIsUTC(t *testing.T) {
	loc := time.FixedZone("plus2", 2*60*60)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 5_000_000, loc)
	assert.Equal(t, "2026-03-01T10:00:00.005Z", FormatTime(ts))
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("disk full")

	err := fmt.Errorf("append: %w", &StorageError{Op: "append", Err: cause})
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, cause)

	up := &UpstreamServiceError{Op: "generate", Err: cause}
	assert.ErrorIs(t, up, cause)

	cfg := &ConfigurationError{Domain: "banking", Err: cause}
	assert.Contains(t, cfg.Error(), "banking")

	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", &NotFoundError{TraceID: "abc"})))
	assert.False(t, IsNotFound(cause))
}
