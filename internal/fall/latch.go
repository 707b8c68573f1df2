package fall

import "container/list"

// LatchSet remembers which track ids have fallen. With max == 0 it never
// forgets an id. With max > 0 it keeps the max most recently active ids and
// drops the least recently active one on overflow.
type LatchSet struct {
	max   int
	order *list.List // front is most recently active
	items map[int]*list.Element
}

func NewLatchSet(max int) *LatchSet {
	return &LatchSet{
		max:   max,
		order: list.New(),
		items: make(map[int]*list.Element),
	}
}

// Latch marks id as fallen and reports whether it was not already.
func (s *LatchSet) Latch(id int) bool {
	if el, ok := s.items[id]; ok {
		s.order.MoveToFront(el)
		return false
	}
	s.items[id] = s.order.PushFront(id)
	if s.max > 0 && s.order.Len() > s.max {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(int))
	}
	return true
}

// Latched reports whether id has fallen and marks it recently active.
func (s *LatchSet) Latched(id int) bool {
	el, ok := s.items[id]
	if ok {
		s.order.MoveToFront(el)
	}
	return ok
}

func (s *LatchSet) Len() int {
	return s.order.Len()
}
