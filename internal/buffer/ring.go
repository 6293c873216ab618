package buffer

// Ring is a fixed-capacity buffer that overwrites its oldest entry
// once full.
type Ring[T any] struct {
	entries []T
	next    int
	full    bool
}

func NewRing[T any](size int) *Ring[T] {
	if size <= 0 {
		size = 1
	}
	return &Ring[T]{
		entries: make([]T, size),
	}
}

func (r *Ring[T]) Add(entry T) {
	if r == nil || len(r.entries) == 0 {
		return
	}

	r.entries[r.next] = entry
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

func (r *Ring[T]) Len() int {
	if r == nil {
		return 0
	}
	if r.full {
		return len(r.entries)
	}
	return r.next
}

// List returns the stored entries oldest-first.
func (r *Ring[T]) List() []T {
	count := r.Len()
	if count == 0 {
		return nil
	}

	start := 0
	if r.full {
		start = r.next
	}
	out := make([]T, count)
	for i := 0; i < count; i++ {
		out[i] = r.entries[(start+i)%len(r.entries)]
	}
	return out
}
