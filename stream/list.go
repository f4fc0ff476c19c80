// Package stream provides the ordered command container used by every
// pipeline stage and the bounds-checked byte accessors the codecs share.
package stream

// Element is a node of a List. The zero value is not usable; elements are
// only created by List methods.
type Element[T any] struct {
	next, prev *Element[T]
	list       *List[T]

	Value T
}

// Next returns the next element or nil.
func (e *Element[T]) Next() *Element[T] {
	if p := e.next; e.list != nil && p != &e.list.root {
		return p
	}
	return nil
}

// Prev returns the previous element or nil.
func (e *Element[T]) Prev() *Element[T] {
	if p := e.prev; e.list != nil && p != &e.list.root {
		return p
	}
	return nil
}

// List is a doubly linked list with O(1) insertion and removal at any
// element. Stages walk it with Front/Next and splice commands in place.
type List[T any] struct {
	root Element[T] // sentinel
	len  int
}

// New returns an empty list.
func New[T any]() *List[T] {
	return new(List[T]).Init()
}

// FromSlice returns a list holding vals in order.
func FromSlice[T any](vals []T) *List[T] {
	l := New[T]()
	for _, v := range vals {
		l.PushBack(v)
	}
	return l
}

// Init clears the list.
func (l *List[T]) Init() *List[T] {
	l.root.next = &l.root
	l.root.prev = &l.root
	l.len = 0
	return l
}

func (l *List[T]) lazyInit() {
	if l.root.next == nil {
		l.Init()
	}
}

// Len returns the number of elements.
func (l *List[T]) Len() int { return l.len }

// Front returns the first element or nil.
func (l *List[T]) Front() *Element[T] {
	if l.len == 0 {
		return nil
	}
	return l.root.next
}

// Back returns the last element or nil.
func (l *List[T]) Back() *Element[T] {
	if l.len == 0 {
		return nil
	}
	return l.root.prev
}

func (l *List[T]) insert(e, at *Element[T]) *Element[T] {
	e.prev = at
	e.next = at.next
	e.prev.next = e
	e.next.prev = e
	e.list = l
	l.len++
	return e
}

// PushBack appends v and returns its element.
func (l *List[T]) PushBack(v T) *Element[T] {
	l.lazyInit()
	return l.insert(&Element[T]{Value: v}, l.root.prev)
}

// PushFront prepends v and returns its element.
func (l *List[T]) PushFront(v T) *Element[T] {
	l.lazyInit()
	return l.insert(&Element[T]{Value: v}, &l.root)
}

// InsertBefore inserts v immediately before mark. A nil mark or a mark
// from another list appends v at the end.
func (l *List[T]) InsertBefore(v T, mark *Element[T]) *Element[T] {
	if mark == nil || mark.list != l {
		return l.PushBack(v)
	}
	return l.insert(&Element[T]{Value: v}, mark.prev)
}

// InsertAfter inserts v immediately after mark. A nil mark or a mark from
// another list appends v at the end.
func (l *List[T]) InsertAfter(v T, mark *Element[T]) *Element[T] {
	if mark == nil || mark.list != l {
		return l.PushBack(v)
	}
	return l.insert(&Element[T]{Value: v}, mark)
}

// Remove unlinks e and returns its value. Removing an element twice is a
// no-op.
func (l *List[T]) Remove(e *Element[T]) T {
	if e.list == l {
		e.prev.next = e.next
		e.next.prev = e.prev
		e.next = nil
		e.prev = nil
		e.list = nil
		l.len--
	}
	return e.Value
}

// Values copies the list into a slice.
func (l *List[T]) Values() []T {
	out := make([]T, 0, l.len)
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value)
	}
	return out
}
