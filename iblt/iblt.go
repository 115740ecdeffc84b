package iblt

import (
	"errors"
	"fmt"
	"math"

	"amq/lib/hashing"
	utilmath "amq/lib/utils/math"

	"github.com/samber/mo"
)

const (
	DefaultHashCount = 3
	// DefaultAlpha is the number of cells allocated per expected difference.
	DefaultAlpha = 2.0
)

var (
	ErrInvalidConfig = errors.New("invalid iblt configuration")
	// ErrIncompatible is returned when combining tables of different shape,
	// seed or hash algorithm.
	ErrIncompatible = errors.New("incompatible iblt")
	// ErrUndecidable is returned by Has when every cell of the element holds
	// more than one element.
	ErrUndecidable = errors.New("membership cannot be decided")
)

type Options struct {
	HashCount int
	Alpha     float64
	Seed      mo.Option[uint64]
	Hasher    hashing.Hasher
	// ReseedAfter tunes how many index candidates are drawn from one seed,
	// zero means the table size.
	ReseedAfter int
}

func DefaultOptions() Options {
	return Options{
		HashCount:   DefaultHashCount,
		Alpha:       DefaultAlpha,
		Seed:        mo.None[uint64](), // hashing.DefaultSeed
		Hasher:      hashing.Default(),
		ReseedAfter: 0,
	}
}

func (o Options) WithHashCount(k int) Options {
	o.HashCount = k
	return o
}

func (o Options) WithAlpha(alpha float64) Options {
	o.Alpha = alpha
	return o
}

func (o Options) WithSeed(seed uint64) Options {
	o.Seed = mo.Some(seed)
	return o
}

func (o Options) WithHasher(h hashing.Hasher) Options {
	o.Hasher = h
	return o
}

func (o Options) WithReseedAfter(n int) Options {
	o.ReseedAfter = n
	return o
}

// Table is an invertible bloom lookup table. Every element is XORed into
// HashCount distinct cells, which lets two tables be subtracted and the
// difference of their contents be decoded back.
//
// Table is not safe for concurrent use.
type Table struct {
	cells     []Cell
	hashCount int
	seed      uint64
	engine    hashing.Engine
	stats     Stats
}

// New returns an empty table of size cells.
func New(size int, opts Options) (*Table, error) {
	hasher := opts.Hasher
	if hasher == nil {
		hasher = hashing.Default()
	}
	engine := hashing.NewEngine(hasher).WithReseedAfter(opts.ReseedAfter)
	return newTable(size, opts.HashCount, opts.Seed.OrElse(hashing.DefaultSeed), engine)
}

// Create returns a table able to decode about expectedDifferences elements:
// ceil(expectedDifferences*Alpha) cells, rounded up to a multiple of
// HashCount.
func Create(expectedDifferences int, opts Options) (*Table, error) {
	if expectedDifferences <= 0 {
		return nil, fmt.Errorf("%w: expected differences %d must be positive", ErrInvalidConfig, expectedDifferences)
	}
	if opts.Alpha <= 0 || math.IsNaN(opts.Alpha) || math.IsInf(opts.Alpha, 0) {
		return nil, fmt.Errorf("%w: alpha %v must be positive", ErrInvalidConfig, opts.Alpha)
	}
	if opts.HashCount <= 0 {
		return nil, fmt.Errorf("%w: hash count %d must be positive", ErrInvalidConfig, opts.HashCount)
	}
	size := int(math.Ceil(float64(expectedDifferences) * opts.Alpha))
	return New(utilmath.RoundUpToMultiple(size, opts.HashCount), opts)
}

func newTable(size, hashCount int, seed uint64, engine hashing.Engine) (*Table, error) {
	switch {
	case hashCount <= 0:
		return nil, fmt.Errorf("%w: hash count %d must be positive", ErrInvalidConfig, hashCount)
	case size < hashCount:
		return nil, fmt.Errorf("%w: size %d smaller than hash count %d", ErrInvalidConfig, size, hashCount)
	case engine.ReseedAfter() < 0:
		return nil, fmt.Errorf("%w: reseed after %d must not be negative", ErrInvalidConfig, engine.ReseedAfter())
	}
	return &Table{
		cells:     make([]Cell, size),
		hashCount: hashCount,
		seed:      seed,
		engine:    engine,
	}, nil
}

func (t *Table) indexes(element []byte) []int {
	return t.engine.DistinctIndexes(element, len(t.cells), t.hashCount, t.seed)
}

func (t *Table) hash(element []byte) uint64 {
	return t.engine.Hasher().Hash64(element, t.seed)
}

// update XORs element into the given cells and adds delta to their counts.
func (t *Table) update(element []byte, indexes []int, delta int64) {
	enc := encode(element)
	h := t.hash(element)
	for _, idx := range indexes {
		c := &t.cells[idx]
		c.IDSum = xorBytes(c.IDSum, enc)
		c.HashSum ^= h
		c.Count += delta
	}
}

func (t *Table) Add(element []byte) {
	t.update(element, t.indexes(element), 1)
	t.stats.Adds.Inc()
}

// Remove undoes an Add. Removing an element that was never added leaves it
// with a negative count, which Decode reports as missing.
func (t *Table) Remove(element []byte) {
	t.update(element, t.indexes(element), -1)
	t.stats.Removes.Inc()
}

// pureElement returns the element of a cell holding exactly one element.
func (t *Table) pureElement(c Cell) ([]byte, bool) {
	if c.Count != 1 && c.Count != -1 {
		return nil, false
	}
	element, ok := decode(c.IDSum)
	if !ok || t.hash(element) != c.HashSum {
		return nil, false
	}
	return element, true
}

// IsCellPure reports whether c holds exactly one element, added or removed.
func (t *Table) IsCellPure(c Cell) bool {
	_, ok := t.pureElement(c)
	return ok
}

// Has reports whether element is in the table. It looks for one of the
// element's cells that is empty or pure; if there is none, it returns
// ErrUndecidable.
func (t *Table) Has(element []byte) (bool, error) {
	maybeInc(shouldSample(), &t.stats.Lookups)
	for _, idx := range t.indexes(element) {
		c := t.cells[idx]
		if c.IsEmpty() {
			return false, nil
		}
		if e, ok := t.pureElement(c); ok {
			return c.Count > 0 && string(e) == string(element), nil
		}
	}
	return false, ErrUndecidable
}

func (t *Table) compatible(other *Table) error {
	switch {
	case other == nil:
		return fmt.Errorf("%w: nil table", ErrIncompatible)
	case len(t.cells) != len(other.cells):
		return fmt.Errorf("%w: size %d != %d", ErrIncompatible, len(t.cells), len(other.cells))
	case t.hashCount != other.hashCount:
		return fmt.Errorf("%w: hash count %d != %d", ErrIncompatible, t.hashCount, other.hashCount)
	case t.seed != other.seed:
		return fmt.Errorf("%w: seed %d != %d", ErrIncompatible, t.seed, other.seed)
	case t.engine.Hasher().Name() != other.engine.Hasher().Name():
		return fmt.Errorf("%w: hash algorithm %s != %s", ErrIncompatible, t.engine.Hasher().Name(), other.engine.Hasher().Name())
	case t.engine.ReseedAfter() != other.engine.ReseedAfter():
		return fmt.Errorf("%w: reseed after %d != %d", ErrIncompatible, t.engine.ReseedAfter(), other.engine.ReseedAfter())
	}
	return nil
}

// Subtract returns a new table holding t minus other: elements only in t
// decode as additional, elements only in other as missing. Neither input
// is modified.
func (t *Table) Subtract(other *Table) (*Table, error) {
	if err := t.compatible(other); err != nil {
		return nil, err
	}
	ret := t.empty()
	for i := range ret.cells {
		ret.cells[i] = t.cells[i].xor(other.cells[i])
	}
	return ret, nil
}

func (t *Table) empty() *Table {
	return &Table{
		cells:     make([]Cell, len(t.cells)),
		hashCount: t.hashCount,
		seed:      t.seed,
		engine:    t.engine,
	}
}

// Clone returns a deep copy with fresh stats.
func (t *Table) Clone() *Table {
	ret := t.empty()
	for i, c := range t.cells {
		ret.cells[i] = c.clone()
	}
	return ret
}

func (t *Table) Equals(other *Table) bool {
	if t.compatible(other) != nil {
		return false
	}
	for i := range t.cells {
		if !t.cells[i].Equals(other.cells[i]) {
			return false
		}
	}
	return true
}

func (t *Table) Size() int              { return len(t.cells) }
func (t *Table) HashCount() int         { return t.hashCount }
func (t *Table) Seed() uint64           { return t.seed }
func (t *Table) Hasher() hashing.Hasher { return t.engine.Hasher() }

// Length returns the net number of elements, additions minus removals.
func (t *Table) Length() int64 {
	var sum int64
	for _, c := range t.cells {
		sum += c.Count
	}
	return sum / int64(t.hashCount)
}

func (t *Table) IsEmpty() bool {
	for _, c := range t.cells {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// Cells returns a copy of the cells.
func (t *Table) Cells() []Cell {
	ret := make([]Cell, len(t.cells))
	for i, c := range t.cells {
		ret[i] = c.clone()
	}
	return ret
}
