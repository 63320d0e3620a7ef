package transform

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"refinery/internal/domain"
	"refinery/internal/table"
)

// maxOneHotCategories caps one-hot expansion. Beyond this the column is
// effectively an identifier and expanding it would explode the schema.
const maxOneHotCategories = 10000

// stepPlan holds resolved column indexes and the learned statistics for a
// single step. Plans are built against the step's input header, then used
// to transform every row; the plan also counts work for diagnostics.
type stepPlan struct {
	step    domain.Step
	idx     int
	header  []string
	targets []int // indexes of step.Columns within header; drop_missing with no columns targets all

	// learned statistics, keyed by column index
	fill       map[int]string
	scale      map[int]*scaleStats
	categories map[int][]string
	labels     map[int]map[string]int
	medianVals map[int][]float64
	modeCounts map[int]map[string]int64
	modeOrder  map[int][]string

	cellsTouched int64
}

// scaleStats accumulates the aggregates needed by both scale methods.
type scaleStats struct {
	min, max   float64
	sum, sumSq float64
	n          int64
}

func (s *scaleStats) observe(v float64) {
	if s.n == 0 || v < s.min {
		s.min = v
	}
	if s.n == 0 || v > s.max {
		s.max = v
	}
	s.sum += v
	s.sumSq += v * v
	s.n++
}

func (s *scaleStats) mean() float64 {
	if s.n == 0 {
		return 0
	}
	return s.sum / float64(s.n)
}

func (s *scaleStats) stddev() float64 {
	if s.n == 0 {
		return 0
	}
	m := s.mean()
	v := s.sumSq/float64(s.n) - m*m
	if v < 0 {
		v = 0
	}
	return math.Sqrt(v)
}

func execErr(idx int, format string, args ...interface{}) *domain.ExecutionError {
	return &domain.ExecutionError{StepIndex: idx, Message: fmt.Sprintf(format, args...)}
}

// planStep resolves the step against its input header. Validation has
// already guaranteed the columns exist; a miss here means the pipeline
// drifted mid-flight and is reported as an execution defect.
func planStep(header []string, idx int, step domain.Step) (*stepPlan, error) {
	p := &stepPlan{step: step, idx: idx, header: header}
	if len(step.Columns) == 0 && step.Kind == domain.StepDropMissing {
		p.targets = make([]int, len(header))
		for i := range header {
			p.targets[i] = i
		}
		return p, nil
	}
	for _, name := range step.Columns {
		found := -1
		for i, h := range header {
			if h == name {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, execErr(idx, "column %q missing from working schema", name)
		}
		p.targets = append(p.targets, found)
	}
	return p, nil
}

// needsStats reports whether the step requires a statistics pass over its
// input before any row can be transformed.
func (p *stepPlan) needsStats() bool {
	switch p.step.Kind {
	case domain.StepScale, domain.StepOneHot, domain.StepLabelEncode:
		return true
	case domain.StepImpute:
		return p.step.Method != domain.ImputeConstant
	}
	return false
}

// observe feeds one row into the statistics accumulators.
func (p *stepPlan) observe(row []string) error {
	for _, ci := range p.targets {
		cell := cellAt(row, ci)
		if cell == "" {
			continue
		}
		switch p.step.Kind {
		case domain.StepScale:
			v, ok := table.ParseFloatCell(cell)
			if !ok {
				return execErr(p.idx, "scale: non-numeric value %q in column %q", cell, p.header[ci])
			}
			if p.scale == nil {
				p.scale = make(map[int]*scaleStats)
			}
			if p.scale[ci] == nil {
				p.scale[ci] = &scaleStats{}
			}
			p.scale[ci].observe(v)

		case domain.StepImpute:
			switch p.step.Method {
			case domain.ImputeMean:
				v, ok := table.ParseFloatCell(cell)
				if !ok {
					return execErr(p.idx, "impute mean: non-numeric value %q in column %q", cell, p.header[ci])
				}
				if p.scale == nil {
					p.scale = make(map[int]*scaleStats)
				}
				if p.scale[ci] == nil {
					p.scale[ci] = &scaleStats{}
				}
				p.scale[ci].observe(v)
			case domain.ImputeMedian:
				v, ok := table.ParseFloatCell(cell)
				if !ok {
					return execErr(p.idx, "impute median: non-numeric value %q in column %q", cell, p.header[ci])
				}
				if p.medianVals == nil {
					p.medianVals = make(map[int][]float64)
				}
				p.medianVals[ci] = append(p.medianVals[ci], v)
			case domain.ImputeMode:
				if p.modeCounts == nil {
					p.modeCounts = make(map[int]map[string]int64)
					p.modeOrder = make(map[int][]string)
				}
				if p.modeCounts[ci] == nil {
					p.modeCounts[ci] = make(map[string]int64)
				}
				if _, seen := p.modeCounts[ci][cell]; !seen {
					p.modeOrder[ci] = append(p.modeOrder[ci], cell)
				}
				p.modeCounts[ci][cell]++
			}

		case domain.StepOneHot:
			if p.labels == nil {
				p.labels = make(map[int]map[string]int)
				p.categories = make(map[int][]string)
			}
			if p.labels[ci] == nil {
				p.labels[ci] = make(map[string]int)
			}
			if _, seen := p.labels[ci][cell]; !seen {
				if len(p.categories[ci]) >= maxOneHotCategories {
					return execErr(p.idx, "one_hot: column %q exceeds %d distinct categories", p.header[ci], maxOneHotCategories)
				}
				p.labels[ci][cell] = len(p.categories[ci])
				p.categories[ci] = append(p.categories[ci], cell)
			}

		case domain.StepLabelEncode:
			if p.labels == nil {
				p.labels = make(map[int]map[string]int)
			}
			if p.labels[ci] == nil {
				p.labels[ci] = make(map[string]int)
			}
			// Ties and ordering are by first-seen, for determinism.
			if _, seen := p.labels[ci][cell]; !seen {
				p.labels[ci][cell] = len(p.labels[ci])
			}
		}
	}
	return nil
}

// finalize turns accumulated statistics into the per-column fill values
// and parameters the transform pass uses.
func (p *stepPlan) finalize() error {
	if p.step.Kind != domain.StepImpute {
		return nil
	}
	p.fill = make(map[int]string)
	for _, ci := range p.targets {
		switch p.step.Method {
		case domain.ImputeConstant:
			p.fill[ci] = p.step.Value
		case domain.ImputeMean:
			st := p.scale[ci]
			if st == nil || st.n == 0 {
				return execErr(p.idx, "impute mean: column %q has no non-null values", p.header[ci])
			}
			p.fill[ci] = table.FormatFloat(st.mean())
		case domain.ImputeMedian:
			vals := p.medianVals[ci]
			if len(vals) == 0 {
				return execErr(p.idx, "impute median: column %q has no non-null values", p.header[ci])
			}
			sort.Float64s(vals)
			var med float64
			mid := len(vals) / 2
			if len(vals)%2 == 1 {
				med = vals[mid]
			} else {
				med = (vals[mid-1] + vals[mid]) / 2
			}
			p.fill[ci] = table.FormatFloat(med)
		case domain.ImputeMode:
			order := p.modeOrder[ci]
			if len(order) == 0 {
				return execErr(p.idx, "impute mode: column %q has no non-null values", p.header[ci])
			}
			counts := p.modeCounts[ci]
			best := order[0]
			for _, v := range order {
				if counts[v] > counts[best] {
					best = v
				}
			}
			p.fill[ci] = best
		}
	}
	return nil
}

// outHeader computes the step's output header. one_hot replaces each
// target column, in place, with one column per first-seen category.
func (p *stepPlan) outHeader() []string {
	switch p.step.Kind {
	case domain.StepOneHot:
		targetSet := make(map[int]struct{}, len(p.targets))
		for _, ci := range p.targets {
			targetSet[ci] = struct{}{}
		}
		var out []string
		for i, h := range p.header {
			if _, ok := targetSet[i]; !ok {
				out = append(out, h)
				continue
			}
			for _, cat := range p.categories[i] {
				out = append(out, h+"="+cat)
			}
		}
		return out
	case domain.StepDropColumns:
		drop := make(map[int]struct{}, len(p.targets))
		for _, ci := range p.targets {
			drop[ci] = struct{}{}
		}
		var out []string
		for i, h := range p.header {
			if _, ok := drop[i]; !ok {
				out = append(out, h)
			}
		}
		return out
	case domain.StepRenameColumn:
		out := append([]string(nil), p.header...)
		out[p.targets[0]] = p.step.NewName
		return out
	default:
		return append([]string(nil), p.header...)
	}
}

// transformRow produces the output record for one input record. keep=false
// means the row is dropped. Arithmetic uses double precision throughout.
func (p *stepPlan) transformRow(row []string) (out []string, keep bool, err error) {
	switch p.step.Kind {
	case domain.StepDropMissing:
		for _, ci := range p.targets {
			if cellAt(row, ci) == "" {
				return nil, false, nil
			}
		}
		return row, true, nil

	case domain.StepImpute:
		out = append([]string(nil), row...)
		for _, ci := range p.targets {
			if cellAt(out, ci) == "" {
				out[ci] = p.fill[ci]
				p.cellsTouched++
			}
		}
		return out, true, nil

	case domain.StepScale:
		out = append([]string(nil), row...)
		for _, ci := range p.targets {
			cell := cellAt(out, ci)
			if cell == "" {
				continue
			}
			v, ok := table.ParseFloatCell(cell)
			if !ok {
				return nil, false, execErr(p.idx, "scale: non-numeric value %q in column %q", cell, p.header[ci])
			}
			st := p.scale[ci]
			var scaled float64
			switch p.step.ScaleMethod() {
			case domain.ScaleMinMax:
				if span := st.max - st.min; span != 0 {
					scaled = (v - st.min) / span
				}
			case domain.ScaleStandard:
				if sd := st.stddev(); sd != 0 {
					scaled = (v - st.mean()) / sd
				}
			}
			out[ci] = table.FormatFloat(scaled)
			p.cellsTouched++
		}
		return out, true, nil

	case domain.StepOneHot:
		targetSet := make(map[int]struct{}, len(p.targets))
		for _, ci := range p.targets {
			targetSet[ci] = struct{}{}
		}
		for i := range p.header {
			if _, ok := targetSet[i]; !ok {
				out = append(out, cellAt(row, i))
				continue
			}
			cell := cellAt(row, i)
			for _, cat := range p.categories[i] {
				// Nulls encode as all zeros.
				if cell == cat {
					out = append(out, "1")
				} else {
					out = append(out, "0")
				}
			}
		}
		p.cellsTouched++
		return out, true, nil

	case domain.StepLabelEncode:
		out = append([]string(nil), row...)
		for _, ci := range p.targets {
			cell := cellAt(out, ci)
			if cell == "" {
				continue
			}
			out[ci] = strconv.Itoa(p.labels[ci][cell])
			p.cellsTouched++
		}
		return out, true, nil

	case domain.StepTypeCast:
		out = append([]string(nil), row...)
		for _, ci := range p.targets {
			cell := cellAt(out, ci)
			if cell == "" {
				continue
			}
			cast, err := castCell(cell, p.step.TargetType)
			if err != nil {
				return nil, false, execErr(p.idx, "type_cast: cannot cast %q in column %q to %s", cell, p.header[ci], p.step.TargetType)
			}
			out[ci] = cast
			p.cellsTouched++
		}
		return out, true, nil

	case domain.StepDropColumns:
		drop := make(map[int]struct{}, len(p.targets))
		for _, ci := range p.targets {
			drop[ci] = struct{}{}
		}
		for i := range p.header {
			if _, ok := drop[i]; !ok {
				out = append(out, cellAt(row, i))
			}
		}
		return out, true, nil

	case domain.StepRenameColumn:
		return row, true, nil

	default:
		return nil, false, execErr(p.idx, "unknown step kind %q", p.step.Kind)
	}
}

// note summarizes the step's work for diagnostics.
func (p *stepPlan) note() string {
	switch p.step.Kind {
	case domain.StepImpute:
		return fmt.Sprintf("filled %d cells", p.cellsTouched)
	case domain.StepScale:
		return fmt.Sprintf("scaled %d cells (%s)", p.cellsTouched, p.step.ScaleMethod())
	case domain.StepOneHot:
		total := 0
		for _, cats := range p.categories {
			total += len(cats)
		}
		return fmt.Sprintf("expanded into %d category columns", total)
	case domain.StepLabelEncode:
		return fmt.Sprintf("encoded %d cells", p.cellsTouched)
	case domain.StepTypeCast:
		return fmt.Sprintf("cast %d cells to %s", p.cellsTouched, p.step.TargetType)
	}
	return ""
}

func castCell(cell string, target domain.ColumnType) (string, error) {
	switch target {
	case domain.ColumnString:
		return cell, nil
	case domain.ColumnInt:
		if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return cell, nil
		}
		if f, ok := table.ParseFloatCell(cell); ok {
			return strconv.FormatInt(int64(f), 10), nil
		}
		return "", fmt.Errorf("not numeric")
	case domain.ColumnFloat:
		if f, ok := table.ParseFloatCell(cell); ok {
			return table.FormatFloat(f), nil
		}
		return "", fmt.Errorf("not numeric")
	case domain.ColumnBool:
		switch strings.ToLower(cell) {
		case "true", "1":
			return "true", nil
		case "false", "0":
			return "false", nil
		}
		return "", fmt.Errorf("not boolean")
	}
	return "", fmt.Errorf("unknown target type %q", target)
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// applyStepTable runs one step against a materialized table (preview path).
func applyStepTable(t *table.Table, idx int, step domain.Step) (*table.Table, StepDiagnostic, error) {
	plan, err := planStep(t.Header, idx, step)
	if err != nil {
		return nil, StepDiagnostic{}, err
	}
	if plan.needsStats() {
		for _, row := range t.Rows {
			if err := plan.observe(row); err != nil {
				return nil, StepDiagnostic{}, err
			}
		}
	}
	if err := plan.finalize(); err != nil {
		return nil, StepDiagnostic{}, err
	}

	outHeader := plan.outHeader()
	out := &table.Table{Header: outHeader}
	for _, row := range t.Rows {
		rec, keep, err := plan.transformRow(row)
		if err != nil {
			return nil, StepDiagnostic{}, err
		}
		if keep {
			out.Rows = append(out.Rows, rec)
		}
	}

	diag := StepDiagnostic{
		StepIndex:  idx,
		Kind:       step.Kind,
		RowsIn:     int64(t.NumRows()),
		RowsOut:    int64(out.NumRows()),
		ColumnsIn:  len(t.Header),
		ColumnsOut: len(outHeader),
		Note:       plan.note(),
	}
	return out, diag, nil
}

// applyStepStream runs one step over canonical bytes, chunked. When the
// step needs statistics the input is streamed twice; the second pass
// writes the output incrementally so peak memory stays proportional to
// the chunk size, not the dataset.
func (e *Executor) applyStepStream(ctx context.Context, input []byte, idx int, step domain.Step) ([]byte, StepDiagnostic, error) {
	rr, err := table.NewRowReaderBytes(input)
	if err != nil {
		return nil, StepDiagnostic{}, err
	}

	plan, err := planStep(rr.Header(), idx, step)
	if err != nil {
		return nil, StepDiagnostic{}, err
	}

	if plan.needsStats() {
		for {
			if err := ctx.Err(); err != nil {
				return nil, StepDiagnostic{}, err
			}
			chunk, err := rr.NextChunk(e.chunkRows)
			for _, row := range chunk {
				if oerr := plan.observe(row); oerr != nil {
					return nil, StepDiagnostic{}, oerr
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, StepDiagnostic{}, err
			}
		}
		// Rewind for the transform pass.
		rr, err = table.NewRowReaderBytes(input)
		if err != nil {
			return nil, StepDiagnostic{}, err
		}
	}
	if err := plan.finalize(); err != nil {
		return nil, StepDiagnostic{}, err
	}

	outHeader := plan.outHeader()
	cw, err := table.NewChunkWriter(outHeader)
	if err != nil {
		return nil, StepDiagnostic{}, err
	}

	var rowsIn int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, StepDiagnostic{}, err
		}
		chunk, cerr := rr.NextChunk(e.chunkRows)
		for _, row := range chunk {
			rowsIn++
			rec, keep, terr := plan.transformRow(row)
			if terr != nil {
				return nil, StepDiagnostic{}, terr
			}
			if !keep {
				continue
			}
			if werr := cw.WriteRow(rec); werr != nil {
				return nil, StepDiagnostic{}, werr
			}
		}
		if cerr == io.EOF {
			break
		}
		if cerr != nil {
			return nil, StepDiagnostic{}, cerr
		}
	}

	out, err := cw.Bytes()
	if err != nil {
		return nil, StepDiagnostic{}, err
	}

	diag := StepDiagnostic{
		StepIndex:  idx,
		Kind:       step.Kind,
		RowsIn:     rowsIn,
		RowsOut:    cw.RowsWritten(),
		ColumnsIn:  len(rr.Header()),
		ColumnsOut: len(outHeader),
		Note:       plan.note(),
	}
	return out, diag, nil
}
