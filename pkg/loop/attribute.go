package loop

import (
	"github.com/emirpasic/gods/maps/treemap"
)

// Well-known attribute names.
const (
	PositionAttribute = "position"
	NormalAttribute   = "normal"
	UVAttribute       = "uv"
)

// Attribute is a flat numeric buffer holding ItemSize scalars per vertex.
// Buffers always describe triangle soup: three consecutive vertices per face.
type Attribute struct {
	Array    []float64
	ItemSize int
}

// Count returns the number of vertices in the buffer.
func (a Attribute) Count() int {
	if a.ItemSize <= 0 {
		return 0
	}
	return len(a.Array) / a.ItemSize
}

// At returns a view of vertex i. The view aliases the buffer.
func (a Attribute) At(i int) Vertex {
	off := i * a.ItemSize
	return Vertex(a.Array[off : off+a.ItemSize])
}

// Clone returns a deep copy of the attribute.
func (a Attribute) Clone() Attribute {
	arr := make([]float64, len(a.Array))
	copy(arr, a.Array)
	return Attribute{Array: arr, ItemSize: a.ItemSize}
}

// Validate checks the triangle-soup shape of the buffer.
func (a Attribute) Validate(name string) error {
	if a.ItemSize <= 0 {
		return invalid(CodeBadItemSize, name, "item size must be positive, got %d", a.ItemSize)
	}
	if len(a.Array)%(a.ItemSize*3) != 0 {
		return invalid(CodeBadLength, name,
			"buffer length %d is not a multiple of itemSize*3 (%d)", len(a.Array), a.ItemSize*3)
	}
	return nil
}

// Attributes is a named collection of auxiliary attributes. Iteration order
// is sorted by name so that runs are reproducible.
type Attributes struct {
	m *treemap.Map
}

// NewAttributes returns an empty collection.
func NewAttributes() *Attributes {
	return &Attributes{m: treemap.NewWithStringComparator()}
}

// Set adds or replaces the attribute stored under name. The zero value is
// ready to use.
func (as *Attributes) Set(name string, a Attribute) {
	if as.m == nil {
		as.m = treemap.NewWithStringComparator()
	}
	as.m.Put(name, a)
}

// Get returns the attribute stored under name.
func (as *Attributes) Get(name string) (Attribute, bool) {
	if as.empty() {
		return Attribute{}, false
	}
	v, ok := as.m.Get(name)
	if !ok {
		return Attribute{}, false
	}
	return v.(Attribute), true
}

// Len returns the number of attributes. A nil collection is empty.
func (as *Attributes) Len() int {
	if as.empty() {
		return 0
	}
	return as.m.Size()
}

// Names returns the attribute names in sorted order.
func (as *Attributes) Names() []string {
	if as.empty() {
		return nil
	}
	names := make([]string, 0, as.m.Size())
	for _, k := range as.m.Keys() {
		names = append(names, k.(string))
	}
	return names
}

// Each calls fn for every attribute in name order.
func (as *Attributes) Each(fn func(name string, a Attribute)) {
	if as.empty() {
		return
	}
	it := as.m.Iterator()
	for it.Next() {
		fn(it.Key().(string), it.Value().(Attribute))
	}
}

func (as *Attributes) empty() bool {
	return as == nil || as.m == nil
}
