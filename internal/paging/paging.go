// Package paging derives fixed-size pages from a collection and owns the
// authoritative current page.
package paging

import "sync"

// PageSize is the number of members shown on one page.
const PageSize = 6

// TotalPages returns ceil(totalItems / PageSize), or 0 for an empty collection.
func TotalPages(totalItems int) int {
	if totalItems <= 0 {
		return 0
	}
	return (totalItems + PageSize - 1) / PageSize
}

// Window is the slice of a collection visible on one page.
type Window[T any] struct {
	Items      []T
	StartIndex int
	EndIndex   int
}

// View returns the items of page currentPage. Pages outside the collection
// yield an empty window positioned at the end.
func View[T any](items []T, currentPage int) Window[T] {
	total := len(items)
	if currentPage < 1 {
		currentPage = 1
	}

	start := (currentPage - 1) * PageSize
	if start > total {
		start = total
	}
	end := min(start+PageSize, total)

	return Window[T]{
		Items:      items[start:end:end],
		StartIndex: start,
		EndIndex:   end,
	}
}

// State is a point-in-time view of the pagination state.
type State struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalItems  int  `json:"totalItems"`
	CanPrevious bool `json:"canPrevious"`
	CanNext     bool `json:"canNext"`
}

// Paginated reports whether the collection has any page at all.
func (s State) Paginated() bool {
	return s.TotalPages > 0
}

// Engine owns the current page. The collection size is read through total
// on every call, so the engine never caches it.
type Engine struct {
	mu      sync.Mutex
	current int
	total   func() int
}

// NewEngine creates an engine seeded with initial, clamped into range.
func NewEngine(total func() int, initial int) *Engine {
	e := &Engine{total: total, current: 1}
	e.current = e.clamp(initial)
	return e
}

// Current returns the current page.
func (e *Engine) Current() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// State returns the current pagination state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := e.total()
	pages := TotalPages(items)
	return State{
		CurrentPage: e.current,
		TotalPages:  pages,
		TotalItems:  items,
		CanPrevious: pages > 0 && e.current > 1,
		CanNext:     e.current < pages,
	}
}

// GoTo moves to target clamped into [1, max(1, TotalPages)].
func (e *Engine) GoTo(target int) (page int, changed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setLocked(e.clamp(target))
}

// Next advances one page; it does nothing on the last page.
func (e *Engine) Next() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current >= TotalPages(e.total()) {
		return e.current, false
	}
	return e.setLocked(e.clamp(e.current + 1))
}

// Previous goes back one page; it does nothing on the first page.
func (e *Engine) Previous() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current <= 1 {
		return e.current, false
	}
	return e.setLocked(e.clamp(e.current - 1))
}

// Reclamp resets the current page to 1 when the collection has shrunk
// below it.
func (e *Engine) Reclamp() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current > max(1, TotalPages(e.total())) {
		return e.setLocked(1)
	}
	return e.current, false
}

func (e *Engine) setLocked(page int) (int, bool) {
	if page == e.current {
		return page, false
	}
	e.current = page
	return page, true
}

func (e *Engine) clamp(target int) int {
	upper := max(1, TotalPages(e.total()))
	if target < 1 {
		return 1
	}
	if target > upper {
		return upper
	}
	return target
}
