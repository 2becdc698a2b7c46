package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidationResultCreation tests creating a new result
func TestValidationResultCreation(t *testing.T) {
	result := NewResult()

	assert.NotNil(t, result)
	assert.Empty(t, result.Messages)
	assert.True(t, result.IsValid())
	assert.True(t, result.CanImport())
	assert.True(t, result.CanPromote())
}

// TestAddError tests adding error messages
func TestAddError(t *testing.T) {
	result := NewResult()

	result.AddError(CodeRollingWindowExceeded, "Rolling 28-day window exceeds duty-hour limit for person p-1")

	assert.Len(t, result.Messages, 1)
	assert.False(t, result.IsValid())
	assert.False(t, result.CanImport())
	assert.False(t, result.CanPromote())
	assert.Equal(t, 1, result.ErrorCount())
}

// TestAddWarning tests adding warning messages
func TestAddWarning(t *testing.T) {
	result := NewResult()

	result.AddWarning(CodeUnderCoverage, "Rotation below target coverage for block 2026-01-16 AM")

	assert.Len(t, result.Messages, 1)
	assert.True(t, result.IsValid())    // Warnings don't make it invalid
	assert.True(t, result.CanImport())  // Can import with warnings
	assert.False(t, result.CanPromote()) // Cannot promote with warnings
	assert.Equal(t, 1, result.WarningCount())
}

// TestAddInfo tests adding info messages
func TestAddInfo(t *testing.T) {
	result := NewResult()

	result.AddInfo("INFO_CODE", "This is informational")

	assert.Len(t, result.Messages, 1)
	assert.True(t, result.IsValid())
	assert.True(t, result.CanImport())
	assert.True(t, result.CanPromote())
	assert.Equal(t, 1, result.InfoCount())
}

// TestMultipleMessages tests collecting multiple messages
func TestMultipleMessages(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeConsecutiveDutyLimit, "Exceeds max consecutive on-duty blocks").
		AddWarning(CodeUnderCoverage, "Below target coverage").
		AddInfo("INFO_CODE", "Processing completed with warnings")

	assert.Len(t, result.Messages, 3)
	assert.Equal(t, 1, result.ErrorCount())
	assert.Equal(t, 1, result.WarningCount())
	assert.Equal(t, 1, result.InfoCount())
	assert.False(t, result.IsValid())
	assert.False(t, result.CanImport())
	assert.False(t, result.CanPromote())
}

// TestMessagesByCode tests filtering messages by code
func TestMessagesByCode(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeRollingWindowExceeded, "Person p-1 exceeds window").
		AddError(CodeRollingWindowExceeded, "Person p-2 exceeds window")

	messages := result.MessagesByCode(CodeRollingWindowExceeded)

	assert.Len(t, messages, 2)
	for _, msg := range messages {
		assert.Equal(t, CodeRollingWindowExceeded, msg.Code)
	}
}

// TestMessagesBySeverity tests filtering messages by severity
func TestMessagesBySeverity(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeRollingWindowExceeded, "Error 1").
		AddError(CodeRollingWindowExceeded, "Error 2").
		AddWarning(CodeUnderCoverage, "Warning 1").
		AddInfo("CODE", "Info 1")

	errors := result.MessagesBySeverity(SeverityError)
	warnings := result.MessagesBySeverity(SeverityWarning)
	infos := result.MessagesBySeverity(SeverityInfo)

	assert.Len(t, errors, 2)
	assert.Len(t, warnings, 1)
	assert.Len(t, infos, 1)
}

// TestHasErrorsAndWarnings tests flag methods
func TestHasErrorsAndWarnings(t *testing.T) {
	resultClean := NewResult()
	assert.False(t, resultClean.HasErrors())
	assert.False(t, resultClean.HasWarnings())

	resultWithError := NewResult().AddError("CODE", "Error")
	assert.True(t, resultWithError.HasErrors())
	assert.False(t, resultWithError.HasWarnings())

	resultWithWarning := NewResult().AddWarning("CODE", "Warning")
	assert.False(t, resultWithWarning.HasErrors())
	assert.True(t, resultWithWarning.HasWarnings())

	resultWithBoth := NewResult().
		AddError("ERR", "Error").
		AddWarning("WARN", "Warning")
	assert.True(t, resultWithBoth.HasErrors())
	assert.True(t, resultWithBoth.HasWarnings())
}

// TestWithContext tests messages with additional context
func TestWithContext(t *testing.T) {
	result := NewResult()

	context := map[string]interface{}{
		"person_id":    "p-1",
		"window_start": "2026-01-01",
	}

	result.AddErrorWithContext(CodeRollingWindowExceeded, "Rolling window exceeded", context)

	assert.Len(t, result.Messages, 1)
	msg := result.Messages[0]
	assert.Equal(t, context, msg.Context)
	assert.Equal(t, "p-1", msg.Context["person_id"])
}

// TestToJSON tests JSON serialization
func TestToJSON(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeRollingWindowExceeded, "Rolling window exceeded").
		AddWarning(CodeUnderCoverage, "Below target coverage")

	json, err := result.ToJSON()

	assert.NoError(t, err)
	assert.NotEmpty(t, json)
	assert.Contains(t, json, "ROLLING_WINDOW_EXCEEDED")
	assert.Contains(t, json, "UNDER_COVERAGE")
	assert.Contains(t, json, "ERROR")
	assert.Contains(t, json, "WARNING")
}

// TestFromJSON tests JSON deserialization
func TestFromJSON(t *testing.T) {
	original := NewResult()
	original.
		AddError(CodeRollingWindowExceeded, "Rolling window exceeded").
		AddWarning(CodeUnderCoverage, "Below target coverage")

	jsonStr, err := original.ToJSON()
	require.NoError(t, err)

	restored, err := FromJSON(jsonStr)
	require.NoError(t, err)

	assert.Len(t, restored.Messages, 2)
	assert.Equal(t, original.ErrorCount(), restored.ErrorCount())
	assert.Equal(t, original.WarningCount(), restored.WarningCount())
}

// TestSummary tests human-readable summary
func TestSummary(t *testing.T) {
	result := NewResult()
	result.
		AddError(CodeRollingWindowExceeded, "Rolling window exceeded").
		AddWarning(CodeUnderCoverage, "Below target coverage").
		AddInfo("INFO", "Done")

	summary := result.Summary()

	assert.Contains(t, summary, "1 errors")
	assert.Contains(t, summary, "1 warnings")
	assert.Contains(t, summary, "1 info")
	assert.Contains(t, summary, "ROLLING_WINDOW_EXCEEDED")
	assert.Contains(t, summary, "UNDER_COVERAGE")
}

// TestChaining tests method chaining
func TestChaining(t *testing.T) {
	result := NewResult().
		AddError("CODE1", "Error 1").
		AddWarning("CODE2", "Warning 1").
		AddInfo("CODE3", "Info 1")

	assert.Len(t, result.Messages, 3)
	assert.Equal(t, 1, result.ErrorCount())
	assert.Equal(t, 1, result.WarningCount())
	assert.Equal(t, 1, result.InfoCount())
}

// TestRealWorldExample tests a compliance-run scenario with multiple issues
func TestRealWorldExample(t *testing.T) {
	result := NewResult()

	result.AddErrorWithContext(
		CodeRollingWindowExceeded,
		"Rolling 28-day duty-hour window exceeded",
		map[string]interface{}{
			"person_id":    "p-7",
			"window_start": "2026-01-01",
			"total_hours":  320.0,
		},
	)

	result.AddErrorWithContext(
		CodeConsecutiveDutyLimit,
		"Consecutive on-duty block limit exceeded",
		map[string]interface{}{
			"person_id": "p-9",
			"run_length": 7,
		},
	)

	result.AddWarning(
		CodeUnderCoverage,
		"Rotation below target coverage on 2026-01-16 AM",
	)

	result.AddInfo(
		"BLOCKS_EVALUATED",
		"Evaluated 840 blocks across the rolling window",
	)

	assert.False(t, result.CanImport())
	assert.False(t, result.CanPromote())
	assert.True(t, result.HasErrors())
	assert.True(t, result.HasWarnings())
}
