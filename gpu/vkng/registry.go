package vkng

import "github.com/cockroachdb/errors"

// registry hands out the integer handles the gpu package uses for the
// driver's object handles and maps them back.
type registry[T any] struct {
	kind  string
	next  uint64
	items map[uint64]T
}

func newRegistry[T any](kind string) *registry[T] {
	return &registry[T]{kind: kind, items: map[uint64]T{}}
}

func (r *registry[T]) add(v T) uint64 {
	r.next++
	r.items[r.next] = v
	return r.next
}

func (r *registry[T]) get(h uint64) (T, error) {
	v, ok := r.items[h]
	if !ok {
		var zero T
		return zero, errors.Newf("unknown %s handle %d", r.kind, h)
	}
	return v, nil
}

// lookup is get for call sites that cannot report an error. A stale handle
// comes back as the driver's null object.
func (r *registry[T]) lookup(h uint64) T {
	return r.items[h]
}

func (r *registry[T]) take(h uint64) (T, bool) {
	v, ok := r.items[h]
	delete(r.items, h)
	return v, ok
}

func (r *registry[T]) len() int {
	return len(r.items)
}
