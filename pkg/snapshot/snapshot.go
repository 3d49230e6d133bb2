package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrIncomplete is returned when a load reports fresh data but carries no snapshot
var ErrIncomplete = errors.New("incomplete snapshot in response")

// Snapshot is a timestamped collection of records for one entity kind.
// Records are never modified once a snapshot has been built; a refresh
// replaces the whole snapshot.
type Snapshot[T any] struct {
	LastUpdate time.Time
	Records    []T
}

// New builds a snapshot stamped with lastUpdate
func New[T any](lastUpdate time.Time, records []T) *Snapshot[T] {
	return &Snapshot[T]{LastUpdate: lastUpdate, Records: records}
}

// Len returns the number of records
func (s *Snapshot[T]) Len() int {
	return len(s.Records)
}

// Status tags a load response
type Status int

const (
	// StatusSnapshot means the response carries fresh data
	StatusSnapshot Status = iota
	// StatusUnchanged means nothing changed since the requested time
	StatusUnchanged
)

func (s Status) String() string {
	switch s {
	case StatusSnapshot:
		return "snapshot"
	case StatusUnchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Response is the successful result of a load: either fresh data or a
// notice that the caller's copy is still current. Failures travel as errors.
type Response[T any] struct {
	Status   Status
	Snapshot *Snapshot[T]
}

// Fresh wraps a snapshot in a StatusSnapshot response
func Fresh[T any](s *Snapshot[T]) Response[T] {
	return Response[T]{Status: StatusSnapshot, Snapshot: s}
}

// Unchanged returns a StatusUnchanged response
func Unchanged[T any]() Response[T] {
	return Response[T]{Status: StatusUnchanged}
}

// Loader queries the controller for records changed after since. A zero
// since requests everything.
type Loader[T any] func(ctx context.Context, since time.Time) (Response[T], error)

// Cache holds the most recent snapshot of one entity kind
type Cache[T any] struct {
	current *Snapshot[T]
}

// Current returns the cached snapshot, or nil before the first successful refresh
func (c *Cache[T]) Current() *Snapshot[T] {
	return c.current
}

// Reset drops the cached snapshot so the next refresh is a full load
func (c *Cache[T]) Reset() {
	c.current = nil
}

// Refresh brings the cache up to date through load. It returns the snapshot
// to display and whether the controller reported no change. On error the
// cached snapshot is left untouched and must not be displayed.
func (c *Cache[T]) Refresh(ctx context.Context, load Loader[T]) (*Snapshot[T], bool, error) {
	var since time.Time
	if c.current != nil {
		since = c.current.LastUpdate
	}

	resp, err := load(ctx, since)
	if err != nil {
		return nil, false, err
	}

	switch resp.Status {
	case StatusUnchanged:
		if c.current == nil {
			return nil, false, fmt.Errorf("%w: unchanged reply to a full load", ErrIncomplete)
		}
		return c.current, true, nil
	case StatusSnapshot:
		if resp.Snapshot == nil {
			return nil, false, ErrIncomplete
		}
		c.current = resp.Snapshot
		return c.current, false, nil
	default:
		return nil, false, fmt.Errorf("unexpected load status %v", resp.Status)
	}
}
