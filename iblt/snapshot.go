package iblt

import (
	"errors"
	"fmt"

	"amq/lib/compress"
	"amq/lib/hashing"

	"github.com/samber/mo"
)

var ErrInvalidSnapshot = errors.New("invalid iblt snapshot")

// Snapshot is the flat, serializable state of a Table.
type Snapshot struct {
	Size          int    `json:"size"`
	HashCount     int    `json:"hash_count"`
	Seed          uint64 `json:"seed"`
	ReseedAfter   int    `json:"reseed_after"`
	HashAlgorithm string `json:"hash_algorithm"`
	Cells         []Cell `json:"cells"`
}

func (t *Table) Export() Snapshot {
	return Snapshot{
		Size:          len(t.cells),
		HashCount:     t.hashCount,
		Seed:          t.seed,
		ReseedAfter:   t.engine.ReseedAfter(),
		HashAlgorithm: t.engine.Hasher().Name(),
		Cells:         t.Cells(),
	}
}

// FromSnapshot rebuilds a table. If hasher is absent, it is resolved from
// the snapshot's hash algorithm name.
func FromSnapshot(s Snapshot, hasher mo.Option[hashing.Hasher]) (*Table, error) {
	h, ok := hasher.Get()
	if !ok {
		var err error
		if h, err = hashing.ByName(s.HashAlgorithm); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
	}
	t, err := newTable(s.Size, s.HashCount, s.Seed, hashing.NewEngine(h).WithReseedAfter(s.ReseedAfter))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if len(s.Cells) != s.Size {
		return nil, fmt.Errorf("%w: expected %d cells, got %d", ErrInvalidSnapshot, s.Size, len(s.Cells))
	}
	for i, c := range s.Cells {
		if len(c.IDSum) > 0 && c.IDSum[0] == 0 {
			return nil, fmt.Errorf("%w: cell %d has a leading zero byte", ErrInvalidSnapshot, i)
		}
		t.cells[i] = c.clone()
		if len(c.IDSum) == 0 {
			t.cells[i].IDSum = nil
		}
	}
	return t, nil
}

// MarshalBinary encodes the table's snapshot with lib/compress.
func (t *Table) MarshalBinary() ([]byte, error) {
	return compress.Marshal(t.Export())
}

// UnmarshalBinary replaces the table's state. A hasher already set on the
// receiver is kept when its name matches the encoded one. Stats are kept.
func (t *Table) UnmarshalBinary(data []byte) error {
	var s Snapshot
	if err := compress.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	hasher := mo.None[hashing.Hasher]()
	if h := t.engine.Hasher(); h != nil && h.Name() == s.HashAlgorithm {
		hasher = mo.Some(h)
	}
	restored, err := FromSnapshot(s, hasher)
	if err != nil {
		return err
	}
	t.cells = restored.cells
	t.hashCount = restored.hashCount
	t.seed = restored.seed
	t.engine = restored.engine
	return nil
}
