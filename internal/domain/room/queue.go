package room

import (
	"sort"
	"time"
)

// overflowQueuePriority is assigned to users displaced by a mic-count
// shrink so they are served before ordinary mic requests.
const overflowQueuePriority = 1

type QueueEntry struct {
	UserID      string    `json:"user_id"`
	Priority    int       `json:"priority"`
	RequestedAt time.Time `json:"requested_at"`
}

// AddToQueue enqueues a mic request. A user already queued keeps their
// original priority and timestamp; the call reports false. The queue is
// re-sorted on every insert: priority descending, then requested-at
// ascending. Room sizes are small, a heap is not worth it.
func (r *Room) AddToQueue(userID string, priority int, now time.Time) bool {
	for i := range r.WaitingQueue {
		if r.WaitingQueue[i].UserID == userID {
			return false
		}
	}

	r.WaitingQueue = append(r.WaitingQueue, QueueEntry{
		UserID:      userID,
		Priority:    priority,
		RequestedAt: now,
	})
	r.sortQueue()

	return true
}

func (r *Room) RemoveFromQueue(userID string) bool {
	for i := range r.WaitingQueue {
		if r.WaitingQueue[i].UserID == userID {
			r.WaitingQueue = append(r.WaitingQueue[:i], r.WaitingQueue[i+1:]...)
			return true
		}
	}

	return false
}

// PopQueue removes and returns the highest-priority entry.
func (r *Room) PopQueue() (QueueEntry, bool) {
	if len(r.WaitingQueue) == 0 {
		return QueueEntry{}, false
	}

	head := r.WaitingQueue[0]
	r.WaitingQueue = r.WaitingQueue[1:]

	return head, true
}

func (r *Room) sortQueue() {
	sort.SliceStable(r.WaitingQueue, func(i, j int) bool {
		a, b := r.WaitingQueue[i], r.WaitingQueue[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}

		return a.RequestedAt.Before(b.RequestedAt)
	})
}
