package plotforge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResultRequiresOperation(t *testing.T) {
	_, err := NewResult("")
	require.ErrorIs(t, err, ErrOperationEmpty)
}

func TestNewResultRejectsInvalidStatus(t *testing.T) {
	_, err := NewResult("op", WithStatus(Status("bogus")))
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestNewResultDefaults(t *testing.T) {
	r, err := NewResult("op", WithModule("scatter"), WithData(42))
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, r.Status)
	assert.Equal(t, "op", r.Operation)
	assert.Equal(t, "scatter", r.Module)
	assert.Equal(t, 42, r.Data)
	assert.True(t, r.IsSuccessful())
	assert.False(t, r.CreatedAt.IsZero())
}

func TestStatusIsMonotonic(t *testing.T) {
	r, err := NewResult("op")
	require.NoError(t, err)

	r.AddWarning("w1")
	assert.Equal(t, StatusPartial, r.Status)

	r.AddError("e1")
	assert.Equal(t, StatusFailed, r.Status)

	// A later warning must never downgrade a failed status.
	r.AddWarning("w2")
	assert.Equal(t, StatusFailed, r.Status)

	assert.Equal(t, []string{"w1", "w2"}, r.WarningMessages())
	assert.Equal(t, []string{"e1"}, r.ErrorMessages())
	assert.False(t, r.IsSuccessful())
}

func TestAddWarningThenError(t *testing.T) {
	r, err := NewResult("op")
	require.NoError(t, err)

	r.AddWarning("w1")
	r.AddError("e1")

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, []string{"w1"}, r.WarningMessages())
	assert.Equal(t, []string{"e1"}, r.ErrorMessages())
}

func TestAddErrorDetails(t *testing.T) {
	r, err := NewResult("op")
	require.NoError(t, err)

	r.AddError("bad input", "row", 7)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, []any{"row", 7}, r.Errors[0].Details)
}

func TestAddWarningSeverityDefaultsToMedium(t *testing.T) {
	r, err := NewResult("op")
	require.NoError(t, err)

	r.AddWarning("slow")
	r.AddWarning("very slow", SeverityHigh)

	assert.Equal(t, SeverityMedium, r.Warnings[0].Severity)
	assert.Equal(t, SeverityHigh, r.Warnings[1].Severity)
}

func TestFinalizeStampsDuration(t *testing.T) {
	r, err := NewResult("op")
	require.NoError(t, err)

	start := time.Now().Add(-50 * time.Millisecond)
	r.Finalize(start)
	assert.GreaterOrEqual(t, r.Duration, 50*time.Millisecond)
}

func TestCombineResultsTakesMaxSeverity(t *testing.T) {
	a, _ := NewResult("a", WithData("da"))
	b, _ := NewResult("b", WithData("db"))
	b.AddWarning("wb")
	c, _ := NewResult("c", WithData("dc"))
	c.AddError("ec")

	combined, err := CombineResults("batch", []*Result{a, b, c})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, combined.Status)
	assert.Equal(t, []string{"ec"}, combined.ErrorMessages())
	assert.Equal(t, []string{"wb"}, combined.WarningMessages())
	assert.Equal(t, []any{"da", "db", "dc"}, combined.Data)
}

func TestCombineResultsSuccessAndPartial(t *testing.T) {
	a, _ := NewResult("a")
	b, _ := NewResult("b")

	combined, err := CombineResults("batch", []*Result{a, b})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, combined.Status)

	b.AddWarning("w")
	combined, err = CombineResults("batch", []*Result{a, b})
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, combined.Status)
}

func TestCombineResultsRejectsEmptyInput(t *testing.T) {
	_, err := CombineResults("batch", nil)
	require.ErrorIs(t, err, ErrNoResults)
}
