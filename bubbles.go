// bubbles.go
// The bubble store keeps ephemeral, location-anchored posts. Each public
// bubble gets its own expiry timer; Sweep is the backstop for timers that
// fire late or never. Both paths go through Remove, which is a no-op for an
// id that is already gone.

package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Location struct {
	Lat  float64 `json:"lat" validate:"latitude"`
	Lng  float64 `json:"lng" validate:"longitude"`
	Name string  `json:"name,omitempty" validate:"max=256"`
}

// Bubble is immutable once stored. CreatedAt is unix milliseconds and
// Duration is whole seconds.
type Bubble struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Location  Location `json:"location"`
	Author    string   `json:"author"`
	CreatedAt int64    `json:"createdAt"`
	Duration  int64    `json:"duration"`
	IsPrivate bool     `json:"isPrivate"`
}

// maxBubbleSeconds caps a bubble's lifetime at one year so the expiry
// arithmetic stays inside int64.
const maxBubbleSeconds = 365 * 24 * 60 * 60

func (b Bubble) lifetime() int64 {
	return min(max(b.Duration, -maxBubbleSeconds), maxBubbleSeconds)
}

func (b Bubble) ExpiresAt() int64 {
	return b.CreatedAt + b.lifetime()*1000
}

// ActiveAt reports whether b belongs in a snapshot taken at now (unix ms).
// Private bubbles never expire.
func (b Bubble) ActiveAt(now int64) bool {
	return b.IsPrivate || b.ExpiresAt() > now
}

// Scheduler runs fn once after d. time.AfterFunc satisfies it.
type Scheduler func(d time.Duration, fn func())

func afterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

type BubbleStore struct {
	items    []Bubble
	schedule Scheduler
}

func NewBubbleStore(schedule Scheduler) *BubbleStore {
	if schedule == nil {
		schedule = afterFunc
	}
	return &BubbleStore{schedule: schedule}
}

// Publish stamps b with a fresh id and creation time, appends it and, for
// public bubbles, schedules onExpire(id) after b.Duration seconds.
func (s *BubbleStore) Publish(b Bubble, now time.Time, onExpire func(id string)) Bubble {
	b.ID = uuid.NewString()
	b.CreatedAt = now.UnixMilli()
	s.items = append(s.items, b)

	if !b.IsPrivate && onExpire != nil {
		id := b.ID
		s.schedule(time.Duration(b.lifetime())*time.Second, func() { onExpire(id) })
	}
	return b
}

// Remove deletes the bubble with the given id and reports whether it was
// still present.
func (s *BubbleStore) Remove(id string) bool {
	_, idx, ok := lo.FindIndexOf(s.items, func(b Bubble) bool { return b.ID == id })
	if !ok {
		return false
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	return true
}

func (s *BubbleStore) ActiveSnapshot(now time.Time) []Bubble {
	ms := now.UnixMilli()
	return lo.Filter(s.items, func(b Bubble, _ int) bool { return b.ActiveAt(ms) })
}

// Sweep removes every public bubble whose window has closed and returns them
// in store order.
func (s *BubbleStore) Sweep(now time.Time) []Bubble {
	ms := now.UnixMilli()
	expired := lo.Reject(s.items, func(b Bubble, _ int) bool { return b.ActiveAt(ms) })
	if len(expired) == 0 {
		return nil
	}
	s.items = lo.Filter(s.items, func(b Bubble, _ int) bool { return b.ActiveAt(ms) })
	return expired
}

func (s *BubbleStore) Len() int {
	return len(s.items)
}
