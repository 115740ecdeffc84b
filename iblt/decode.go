package iblt

import (
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Result of a peeling decode.
type Result struct {
	// Success is true when every cell was emptied.
	Success bool
	// Additional holds elements with a positive count, Missing those with a
	// negative one. For a table built as a.Subtract(b) these are a\b and b\a.
	Additional [][]byte
	Missing    [][]byte
	// Residual holds the cells left non-empty when decoding failed.
	Residual []Cell
}

// Decode peels pure cells off the table until none is left. It is
// destructive: recovered elements are removed from the table, so decoding
// again only reports what is still recoverable. Use Clone or ListEntries to
// keep the table intact.
func (t *Table) Decode() Result {
	t.stats.Decodes.Inc()
	var res Result
	queue := make([]int, 0, len(t.cells))
	for i, c := range t.cells {
		if t.IsCellPure(c) {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		// the cell may have changed since it was queued
		c := t.cells[i]
		element, ok := t.pureElement(c)
		if !ok {
			continue
		}
		indexes := t.indexes(element)
		if !lo.Contains(indexes, i) {
			// looks pure by accident, the element does not map here
			continue
		}
		if c.Count > 0 {
			res.Additional = append(res.Additional, element)
		} else {
			res.Missing = append(res.Missing, element)
		}
		t.update(element, indexes, -c.Count)
		t.stats.Peeled.Inc()
		for _, idx := range indexes {
			if t.IsCellPure(t.cells[idx]) {
				queue = append(queue, idx)
			}
		}
	}

	residual := lo.Filter(t.cells, func(c Cell, _ int) bool {
		return !c.IsEmpty()
	})
	res.Success = len(residual) == 0
	if !res.Success {
		res.Residual = lo.Map(residual, func(c Cell, _ int) Cell {
			return c.clone()
		})
		t.stats.DecodeFailures.Inc()
		zap.L().Debug("iblt decode incomplete",
			zap.Int("size", len(t.cells)),
			zap.Int("residual", len(res.Residual)),
			zap.Int("additional", len(res.Additional)),
			zap.Int("missing", len(res.Missing)),
		)
	}
	return res
}

// ListEntries decodes a copy of the table, leaving t untouched.
func (t *Table) ListEntries() Result {
	return t.Clone().Decode()
}
