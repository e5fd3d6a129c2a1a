// Package pager splits a finished result list into fixed-size pages.
package pager

import "fmt"

const DefaultPageSize = 100

// Pager walks a slice page by page. It is finite and does not restart;
// re-run the query for a fresh walk.
type Pager[T any] struct {
	items []T
	size  int
	next  int
}

func New[T any](items []T, size int) *Pager[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Pager[T]{items: items, size: size}
}

// Next returns the following page, or false once every item was returned.
func (p *Pager[T]) Next() ([]T, bool) {
	if p.next >= len(p.items) {
		return nil, false
	}
	end := min(p.next+p.size, len(p.items))
	page := p.items[p.next:end]
	p.next = end
	return page, true
}

func (p *Pager[T]) HasNext() bool {
	return p.next < len(p.items)
}

// Page returns page n, counting from 1, without moving the cursor.
func (p *Pager[T]) Page(n int) ([]T, error) {
	if n < 1 {
		return nil, fmt.Errorf("page %d out of range", n)
	}
	start := (n - 1) * p.size
	if start >= len(p.items) {
		if n == 1 {
			return []T{}, nil
		}
		return nil, fmt.Errorf("page %d out of range, %d pages", n, p.Pages())
	}
	return p.items[start:min(start+p.size, len(p.items))], nil
}

func (p *Pager[T]) Pages() int {
	return (len(p.items) + p.size - 1) / p.size
}

func (p *Pager[T]) Size() int { return p.size }
