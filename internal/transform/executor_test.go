package transform

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refinery/internal/domain"
	"refinery/internal/table"
	"refinery/internal/validate"
)

const surveyCSV = "age,city,income\n" +
	"34,berlin,52000\n" +
	",berlin,48000\n" +
	"41,munich,\n" +
	"29,hamburg,61000\n"

func newExecutor(opts ...Option) *Executor {
	return NewExecutor(validate.NewEngine(validate.DefaultLossWarnThreshold), opts...)
}

func execFull(t *testing.T, steps []domain.Step) *Result {
	t.Helper()
	res, err := newExecutor().Execute(context.Background(), []byte(surveyCSV), steps, ModeFull)
	require.NoError(t, err)
	return res
}

func TestFullDropMissing(t *testing.T) {
	res := execFull(t, []domain.Step{
		{Kind: domain.StepDropMissing, Columns: []string{"age"}},
	})
	assert.EqualValues(t, 4, res.RowsBefore)
	assert.EqualValues(t, 3, res.RowsAfter)
	assert.NotContains(t, string(res.Bytes), ",berlin,48000")

	tbl, err := table.Decode(res.Bytes)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "city", "income"}, tbl.Header)
}

func TestFullDropMissingAllColumns(t *testing.T) {
	res := execFull(t, []domain.Step{
		{Kind: domain.StepDropMissing},
	})
	// Rows 2 and 3 each carry a null somewhere.
	assert.EqualValues(t, 2, res.RowsAfter)
}

func TestFullImputeMean(t *testing.T) {
	res := execFull(t, []domain.Step{
		{Kind: domain.StepImpute, Columns: []string{"income"}, Method: domain.ImputeMean},
	})
	// mean(52000, 48000, 61000) = 53666.666...
	tbl, err := table.Decode(res.Bytes)
	require.NoError(t, err)
	income := tbl.ColumnIndex("income")
	assert.True(t, strings.HasPrefix(tbl.Rows[2][income], "53666.66"))
	assert.EqualValues(t, 4, res.RowsAfter)
}

func TestFullImputeConstant(t *testing.T) {
	res := execFull(t, []domain.Step{
		{Kind: domain.StepImpute, Columns: []string{"age"}, Method: domain.ImputeConstant, Value: "0"},
	})
	tbl, err := table.Decode(res.Bytes)
	require.NoError(t, err)
	assert.Equal(t, "0", tbl.Rows[1][0])
}

func TestFullScaleMinMax(t *testing.T) {
	res := execFull(t, []domain.Step{
		{Kind: domain.StepDropMissing, Columns: []string{"income"}},
		{Kind: domain.StepScale, Columns: []string{"income"}, Method: domain.ScaleMinMax},
	})
	tbl, err := table.Decode(res.Bytes)
	require.NoError(t, err)
	income := tbl.ColumnIndex("income")
	// 48000 -> 0, 61000 -> 1.
	values := map[string]bool{}
	for _, row := range tbl.Rows {
		values[row[income]] = true
	}
	assert.True(t, values["0"], "min maps to 0, got %v", values)
	assert.True(t, values["1"], "max maps to 1, got %v", values)
}

func TestFullRenameAndDropColumns(t *testing.T) {
	res := execFull(t, []domain.Step{
		{Kind: domain.StepRenameColumn, Columns: []string{"age"}, NewName: "years"},
		{Kind: domain.StepDropColumns, Columns: []string{"income"}},
	})
	tbl, err := table.Decode(res.Bytes)
	require.NoError(t, err)
	assert.Equal(t, []string{"years", "city"}, tbl.Header)
	assert.Len(t, res.Schema.Columns, 2)
}

func TestFullTypeCastTruncatesToInt(t *testing.T) {
	source := []byte("f\n2.5\n3.75\n")
	res, err := newExecutor().Execute(context.Background(), source, []domain.Step{
		{Kind: domain.StepTypeCast, Columns: []string{"f"}, TargetType: domain.ColumnInt},
	}, ModeFull)
	require.NoError(t, err)
	tbl, err := table.Decode(res.Bytes)
	require.NoError(t, err)
	assert.Equal(t, "2", tbl.Rows[0][0])
	assert.Equal(t, "3", tbl.Rows[1][0])
	assert.Equal(t, domain.ColumnInt, res.Schema.Columns[0].Type)
}

func TestFullOneHotFirstSeenOrder(t *testing.T) {
	res := execFull(t, []domain.Step{
		{Kind: domain.StepOneHot, Columns: []string{"city"}},
	})
	tbl, err := table.Decode(res.Bytes)
	require.NoError(t, err)
	// Expansion columns ordered by first appearance: berlin, munich, hamburg.
	assert.Equal(t, []string{"age", "city=berlin", "city=munich", "city=hamburg", "income"}, tbl.Header)
	assert.Equal(t, "1", tbl.Rows[0][1])
	assert.Equal(t, "0", tbl.Rows[0][2])
}

func TestFullLabelEncode(t *testing.T) {
	res := execFull(t, []domain.Step{
		{Kind: domain.StepLabelEncode, Columns: []string{"city"}},
	})
	tbl, err := table.Decode(res.Bytes)
	require.NoError(t, err)
	city := tbl.ColumnIndex("city")
	// First-seen order: berlin=0, munich=1, hamburg=2.
	assert.Equal(t, "0", tbl.Rows[0][city])
	assert.Equal(t, "0", tbl.Rows[1][city])
	assert.Equal(t, "1", tbl.Rows[2][city])
	assert.Equal(t, "2", tbl.Rows[3][city])
}

func TestRejectionProducesNoOutput(t *testing.T) {
	_, err := newExecutor().Execute(context.Background(), []byte(surveyCSV), []domain.Step{
		{Kind: domain.StepScale, Columns: []string{"city"}, Method: domain.ScaleMinMax},
	}, ModeFull)
	var rejected *domain.ValidationRejectedError
	require.ErrorAs(t, err, &rejected)
	require.NotNil(t, rejected.Report)
	assert.Equal(t, domain.ReportRejected, rejected.Report.Status)
}

func TestFullIsDeterministic(t *testing.T) {
	steps := []domain.Step{
		{Kind: domain.StepDropMissing, Columns: []string{"income"}},
		{Kind: domain.StepScale, Columns: []string{"income"}, Method: domain.ScaleStandard},
	}
	a := execFull(t, steps)
	b := execFull(t, steps)
	assert.Equal(t, domain.ContentHash(a.Bytes), domain.ContentHash(b.Bytes))
}

func TestNoOpApplyCanonicalizes(t *testing.T) {
	res := execFull(t, nil)
	assert.Equal(t, domain.ContentHash([]byte(surveyCSV)), domain.ContentHash(res.Bytes))
}

func TestChunkedExecutionMatchesSmall(t *testing.T) {
	// Force multiple chunks; results must be byte-identical.
	var sb strings.Builder
	sb.WriteString("n,v\n")
	for i := 0; i < 100; i++ {
		sb.WriteString("1,2\n")
	}
	source := []byte(sb.String())
	steps := []domain.Step{{Kind: domain.StepScale, Columns: []string{"v"}, Method: domain.ScaleMinMax}}

	small, err := newExecutor(WithChunkRows(7)).Execute(context.Background(), source, steps, ModeFull)
	require.NoError(t, err)
	big, err := newExecutor().Execute(context.Background(), source, steps, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, big.Bytes, small.Bytes)
}

func TestPreviewReturnsSamplesNotBytes(t *testing.T) {
	res, err := newExecutor().Execute(context.Background(), []byte(surveyCSV), []domain.Step{
		{Kind: domain.StepDropMissing, Columns: []string{"age"}},
	}, ModePreview)
	require.NoError(t, err)
	assert.Nil(t, res.Bytes)
	require.NotNil(t, res.SampleBefore)
	require.NotNil(t, res.SampleAfter)
	assert.EqualValues(t, 4, res.RowsBefore)
	assert.EqualValues(t, 3, res.RowsAfter)
}

func TestPreviewSampleDeterministic(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("n\n")
	for i := 0; i < 5000; i++ {
		sb.WriteString("1\n")
	}
	source := []byte(sb.String())

	e := newExecutor(WithSample(50, 7))
	a, err := e.Execute(context.Background(), source, nil, ModePreview)
	require.NoError(t, err)
	b, err := e.Execute(context.Background(), source, nil, ModePreview)
	require.NoError(t, err)
	assert.Equal(t, a.SampleBefore.Rows, b.SampleBefore.Rows)
	assert.Len(t, a.SampleBefore.Rows, 50)
}

func TestExecutionCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newExecutor().Execute(ctx, []byte(surveyCSV), []domain.Step{
		{Kind: domain.StepDropMissing, Columns: []string{"age"}},
	}, ModeFull)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDiagnosticsPerStep(t *testing.T) {
	res := execFull(t, []domain.Step{
		{Kind: domain.StepDropMissing, Columns: []string{"age"}},
		{Kind: domain.StepDropColumns, Columns: []string{"income"}},
	})
	require.Len(t, res.Diagnostics, 2)
	assert.EqualValues(t, 4, res.Diagnostics[0].RowsIn)
	assert.EqualValues(t, 3, res.Diagnostics[0].RowsOut)
	assert.Equal(t, 3, res.Diagnostics[1].ColumnsIn)
	assert.Equal(t, 2, res.Diagnostics[1].ColumnsOut)
}
