package kernel

import "kestrel/kernel/kerr"

type named interface {
	comparable
	Name() string
}

// registry is a bounded collection of one object type.
type registry[T named] struct {
	items []T
	limit int
}

func newRegistry[T named](limit int) registry[T] {
	return registry[T]{items: make([]T, 0, limit), limit: limit}
}

func (r *registry[T]) add(v T) error {
	for _, x := range r.items {
		if x == v {
			return kerr.Exists
		}
	}
	if len(r.items) >= r.limit {
		return kerr.Busy
	}
	r.items = append(r.items, v)
	return nil
}

func (r *registry[T]) remove(v T) error {
	for i, x := range r.items {
		if x == v {
			copy(r.items[i:], r.items[i+1:])
			var zero T
			r.items[len(r.items)-1] = zero
			r.items = r.items[:len(r.items)-1]
			return nil
		}
	}
	return kerr.NotFound
}

func (r *registry[T]) find(name string) (T, bool) {
	for _, x := range r.items {
		if x.Name() == name {
			return x, true
		}
	}
	var zero T
	return zero, false
}

func (r *registry[T]) each(fn func(T) bool) {
	for _, x := range r.items {
		if !fn(x) {
			return
		}
	}
}

func (r *registry[T]) len() int { return len(r.items) }
func (r *registry[T]) cap() int { return r.limit }

// snapshot copies the registry so callers can iterate without the lock.
func (r *registry[T]) snapshot() []T {
	return append([]T(nil), r.items...)
}
