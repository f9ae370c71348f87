package matchmaking

import "github.com/immxrtalbeast/axenix_roulette/internal/domain"

// Queue is a FIFO of client ids waiting for a partner. An id is present at most once.
type Queue struct {
	ids   []domain.ClientID
	index map[domain.ClientID]struct{}
}

func NewQueue() *Queue {
	return &Queue{
		index: make(map[domain.ClientID]struct{}),
	}
}

// Enqueue appends id unless it is already waiting.
func (q *Queue) Enqueue(id domain.ClientID) bool {
	if q.Contains(id) {
		return false
	}
	q.ids = append(q.ids, id)
	q.index[id] = struct{}{}
	return true
}

// PushFront puts id back at the head, used when its candidate partner vanished.
func (q *Queue) PushFront(id domain.ClientID) bool {
	if q.Contains(id) {
		return false
	}
	q.ids = append([]domain.ClientID{id}, q.ids...)
	q.index[id] = struct{}{}
	return true
}

// Pop removes and returns the oldest waiting id.
func (q *Queue) Pop() (domain.ClientID, bool) {
	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	q.ids[0] = ""
	q.ids = q.ids[1:]
	delete(q.index, id)
	return id, true
}

func (q *Queue) Remove(id domain.ClientID) bool {
	if !q.Contains(id) {
		return false
	}
	delete(q.index, id)
	for i, queued := range q.ids {
		if queued == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			break
		}
	}
	return true
}

func (q *Queue) Contains(id domain.ClientID) bool {
	_, ok := q.index[id]
	return ok
}

func (q *Queue) Len() int {
	return len(q.ids)
}

// Snapshot returns the waiting ids, oldest first.
func (q *Queue) Snapshot() []domain.ClientID {
	out := make([]domain.ClientID, len(q.ids))
	copy(out, q.ids)
	return out
}
