package ssa

// poolPageSize is the number of T per page. Pages are slices that only ever
// append, so pointers into them stay stable.
const poolPageSize = 256

// pool is a paged arena for T. Pointers returned by allocate stay valid until
// reset, which keeps the pages around for the next compilation to reuse.
type pool[T any] struct {
	pages [][]T
	page  int
}

func newPool[T any]() pool[T] {
	return pool[T]{page: -1}
}

func (p *pool[T]) allocate() *T {
	if p.page < 0 || len(p.pages[p.page]) == poolPageSize {
		p.page++
		if p.page == len(p.pages) {
			p.pages = append(p.pages, make([]T, 0, poolPageSize))
		}
	}
	cur := &p.pages[p.page]
	var zero T
	*cur = append(*cur, zero)
	return &(*cur)[len(*cur)-1]
}

func (p *pool[T]) allocated() (n int) {
	for i := 0; i <= p.page; i++ {
		n += len(p.pages[i])
	}
	return
}

func (p *pool[T]) reset() {
	for i := range p.pages {
		p.pages[i] = p.pages[i][:0]
	}
	p.page = -1
}
