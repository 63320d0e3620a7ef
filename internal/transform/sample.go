package transform

import (
	"io"
	"math/rand"
	"sort"

	"refinery/internal/table"
)

// sampleRows draws a deterministic reservoir sample of up to k rows from
// canonical CSV bytes. The same seed over the same input always yields the
// same sample, which is what makes previews reproducible; original row
// order is preserved in the output.
func sampleRows(source []byte, k int, seed int64) (*table.Table, error) {
	rr, err := table.NewRowReaderBytes(source)
	if err != nil {
		return nil, err
	}

	type indexed struct {
		idx int
		row []string
	}

	rng := rand.New(rand.NewSource(seed))
	reservoir := make([]indexed, 0, k)
	i := 0
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(reservoir) < k {
			reservoir = append(reservoir, indexed{idx: i, row: rec})
		} else if j := rng.Intn(i + 1); j < k {
			reservoir[j] = indexed{idx: i, row: rec}
		}
		i++
	}

	sort.Slice(reservoir, func(a, b int) bool { return reservoir[a].idx < reservoir[b].idx })

	rows := make([][]string, len(reservoir))
	for n, e := range reservoir {
		rows[n] = e.row
	}
	return &table.Table{Header: rr.Header(), Rows: rows}, nil
}
