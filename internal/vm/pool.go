package vm

// Cell is a variable-sized heap record for String/Object/Array payloads
// (spec.md §3, "Heap Cell"). Cells are never moved; a freed cell may be
// reused when its existing capacity fits a later request, otherwise
// freed memory is retained arena-style until the pool is torn down.
type Cell struct {
	Kind Kind // KindString, KindObject or KindArray

	Refcount int

	Bytes  []byte  // KindString payload
	Fields []Value // KindObject payload, fixed length
	Elems  []Value // KindArray payload, variable length
	Open   bool    // KindArray only: true while the open-slot sentinel is being built

	prev, next *Cell
}

// Pool owns every heap cell allocated during one VM run, doubly-linked
// into an allocated list and a freed list (spec.md §3, §4.1).
type Pool struct {
	allocated *Cell
	freed     *Cell
}

func NewPool() *Pool { return &Pool{} }

func (p *Pool) link(list **Cell, c *Cell) {
	c.prev = nil
	c.next = *list
	if *list != nil {
		(*list).prev = c
	}
	*list = c
}

func (p *Pool) unlink(list **Cell, c *Cell) {
	if c.prev != nil {
		c.prev.next = c.next
	} else {
		*list = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	}
	c.prev, c.next = nil, nil
}

// take returns a freed cell with at least the requested byte capacity
// for reuse, or nil if the freed list holds nothing big enough.
func (p *Pool) take(minBytes int) *Cell {
	for c := p.freed; c != nil; c = c.next {
		if cap(c.Bytes) >= minBytes {
			p.unlink(&p.freed, c)
			return c
		}
	}
	return nil
}

func (p *Pool) alloc(kind Kind, minBytes int) *Cell {
	c := p.take(minBytes)
	if c == nil {
		c = &Cell{}
	}
	c.Kind = kind
	c.Refcount = 1
	p.link(&p.allocated, c)
	return c
}

// NewString copies s into a fresh (or reused) cell.
func (p *Pool) NewString(s string) Value {
	c := p.alloc(KindString, len(s))
	c.Bytes = append(c.Bytes[:0], s...)
	return Value{Kind: KindString, Cell: c}
}

// NewObject allocates a fixed-length object cell. Ownership of each
// field's existing reference transfers directly into the cell (spec.md
// §4.6: CREATE_OBJECT does not separately acquire).
func (p *Pool) NewObject(fields []Value) Value {
	c := p.alloc(KindObject, 0)
	c.Fields = fields
	return Value{Kind: KindObject, Cell: c}
}

// NewArrayOpenSlot allocates the transient array value used while
// assembling an array literal (spec.md glossary, "Open-slot array").
func (p *Pool) NewArrayOpenSlot() Value {
	c := p.alloc(KindArray, 0)
	c.Open = true
	c.Elems = c.Elems[:0]
	return Value{Kind: KindArray, Cell: c}
}

// Acquire increments the refcount of v's heap cell, if any.
func (p *Pool) Acquire(v Value) {
	if isHeapBacked(v.Kind) && v.Cell != nil {
		v.Cell.Refcount++
	}
}

// Release decrements the refcount of v's heap cell, if any; at zero the
// cell moves from the allocated list to the freed list without touching
// its payload (spec.md §4.1 contract: no further read is defined after
// this point).
func (p *Pool) Release(v Value) {
	if !isHeapBacked(v.Kind) || v.Cell == nil {
		return
	}
	c := v.Cell
	c.Refcount--
	if c.Refcount == 0 {
		p.unlink(&p.allocated, c)
		p.link(&p.freed, c)
	}
}
