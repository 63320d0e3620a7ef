package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refinery/internal/domain"
)

// surveySchema mirrors a 1000-row dataset with 30% nulls in income.
func surveySchema() *domain.Schema {
	return &domain.Schema{
		RowCount: 1000,
		Columns: []domain.Column{
			{Name: "age", Type: domain.ColumnInt, NullRatio: 0, DistinctRatio: 0.1},
			{Name: "income", Type: domain.ColumnFloat, NullRatio: 0.3, DistinctRatio: 0.8},
			{Name: "country", Type: domain.ColumnString, NullRatio: 0, DistinctRatio: 0.02},
		},
	}
}

func TestDropMissingBelowThresholdIsOK(t *testing.T) {
	e := NewEngine(DefaultLossWarnThreshold)
	report := e.Validate(surveySchema(), []domain.Step{
		{Kind: domain.StepDropMissing, Columns: []string{"income"}, Threshold: 0.5},
	})
	assert.Equal(t, domain.ReportOK, report.Status)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, domain.SeverityInfo, report.Findings[0].Severity)
	assert.InDelta(t, 30.0, report.Findings[0].EstimatedRowLossPct, 0.5)
}

func TestDropMissingAboveThresholdWarns(t *testing.T) {
	e := NewEngine(DefaultLossWarnThreshold)
	report := e.Validate(surveySchema(), []domain.Step{
		{Kind: domain.StepDropMissing, Columns: []string{"income"}, Threshold: 0.1},
	})
	assert.Equal(t, domain.ReportWarning, report.Status)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, domain.SeverityWarning, report.Findings[0].Severity)
	assert.InDelta(t, 30.0, report.Findings[0].EstimatedRowLossPct, 0.5)
}

func TestScaleNonNumericRejected(t *testing.T) {
	e := NewEngine(DefaultLossWarnThreshold)
	report := e.Validate(surveySchema(), []domain.Step{
		{Kind: domain.StepScale, Columns: []string{"country"}, Method: domain.ScaleMinMax},
	})
	assert.Equal(t, domain.ReportRejected, report.Status)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, 0, report.Findings[0].StepIndex)
	assert.Contains(t, report.Findings[0].Message, "numeric")
}

func TestProjectedSchemaChainsAcrossSteps(t *testing.T) {
	// After one-hot expansion the original column is gone; a later step
	// referencing it must be rejected against the projected schema.
	e := NewEngine(DefaultLossWarnThreshold)
	report := e.Validate(surveySchema(), []domain.Step{
		{Kind: domain.StepOneHot, Columns: []string{"country"}},
		{Kind: domain.StepScale, Columns: []string{"country"}, Method: domain.ScaleMinMax},
	})
	assert.Equal(t, domain.ReportRejected, report.Status)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, 1, report.Findings[0].StepIndex)
	assert.Contains(t, report.Findings[0].Message, "does not exist")
}

func TestRenameMakesNewNameVisibleDownstream(t *testing.T) {
	e := NewEngine(DefaultLossWarnThreshold)
	report := e.Validate(surveySchema(), []domain.Step{
		{Kind: domain.StepRenameColumn, Columns: []string{"income"}, NewName: "salary"},
		{Kind: domain.StepScale, Columns: []string{"salary"}, Method: domain.ScaleStandard},
	})
	assert.Equal(t, domain.ReportOK, report.Status)
}

func TestRenameToExistingColumnRejected(t *testing.T) {
	e := NewEngine(DefaultLossWarnThreshold)
	report := e.Validate(surveySchema(), []domain.Step{
		{Kind: domain.StepRenameColumn, Columns: []string{"income"}, NewName: "age"},
	})
	assert.Equal(t, domain.ReportRejected, report.Status)
}

func TestUnknownColumnRejected(t *testing.T) {
	e := NewEngine(DefaultLossWarnThreshold)
	report := e.Validate(surveySchema(), []domain.Step{
		{Kind: domain.StepDropColumns, Columns: []string{"ghost"}},
	})
	assert.Equal(t, domain.ReportRejected, report.Status)
	assert.Contains(t, report.Findings[0].Message, "ghost")
}

func TestImputeMeanOnStringRejected(t *testing.T) {
	e := NewEngine(DefaultLossWarnThreshold)
	report := e.Validate(surveySchema(), []domain.Step{
		{Kind: domain.StepImpute, Columns: []string{"country"}, Method: domain.ImputeMean},
	})
	assert.Equal(t, domain.ReportRejected, report.Status)
}

func TestImputeConstantTypeChecked(t *testing.T) {
	e := NewEngine(DefaultLossWarnThreshold)
	report := e.Validate(surveySchema(), []domain.Step{
		{Kind: domain.StepImpute, Columns: []string{"income"}, Method: domain.ImputeConstant, Value: "abc"},
	})
	assert.Equal(t, domain.ReportRejected, report.Status)

	report = e.Validate(surveySchema(), []domain.Step{
		{Kind: domain.StepImpute, Columns: []string{"income"}, Method: domain.ImputeConstant, Value: "0"},
	})
	assert.Equal(t, domain.ReportOK, report.Status)
}

func TestMalformedStepRejected(t *testing.T) {
	e := NewEngine(DefaultLossWarnThreshold)
	report := e.Validate(surveySchema(), []domain.Step{
		{Kind: domain.StepRenameColumn, Columns: []string{"income"}},
	})
	assert.Equal(t, domain.ReportRejected, report.Status)
}

func TestZeroRowDatasetRejected(t *testing.T) {
	schema := surveySchema()
	schema.RowCount = 0
	e := NewEngine(DefaultLossWarnThreshold)
	report := e.Validate(schema, []domain.Step{
		{Kind: domain.StepDropMissing, Columns: []string{"income"}},
	})
	assert.Equal(t, domain.ReportRejected, report.Status)
}

func TestEmptyStepSequenceIsOK(t *testing.T) {
	e := NewEngine(DefaultLossWarnThreshold)
	report := e.Validate(surveySchema(), nil)
	assert.Equal(t, domain.ReportOK, report.Status)
	assert.Empty(t, report.Findings)
}

func TestValidateDoesNotMutateSchema(t *testing.T) {
	schema := surveySchema()
	e := NewEngine(DefaultLossWarnThreshold)
	_ = e.Validate(schema, []domain.Step{
		{Kind: domain.StepDropColumns, Columns: []string{"country"}},
		{Kind: domain.StepDropMissing, Columns: []string{"income"}},
	})
	assert.Len(t, schema.Columns, 3)
	assert.EqualValues(t, 1000, schema.RowCount)
	assert.InDelta(t, 0.3, schema.Columns[1].NullRatio, 1e-9)
}
