package app

import (
	"sync"
	"time"

	"github.com/maubot-tools/mbdash/internal/client"
)

// Snapshot is a read-only copy of what the dashboard currently shows.
type Snapshot struct {
	Taken     time.Time
	Server    string
	Username  string
	Status    client.Status
	Failures  int
	Instances []string
	Clients   []string
	Plugins   []string
	LogLines  int
	Events    int
	LastEvent *client.Event
}

// DebugAccessor exposes dashboard state to code outside the Bubble Tea loop.
// The model publishes into it after every update.
type DebugAccessor struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewDebugAccessor returns an empty accessor.
func NewDebugAccessor() *DebugAccessor {
	return &DebugAccessor{}
}

// Snapshot returns the latest published state. Slices are copies.
func (d *DebugAccessor) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := d.snap
	s.Instances = append([]string(nil), s.Instances...)
	s.Clients = append([]string(nil), s.Clients...)
	s.Plugins = append([]string(nil), s.Plugins...)
	if s.LastEvent != nil {
		e := *s.LastEvent
		s.LastEvent = &e
	}
	return s
}

// Update applies fn to the stored snapshot under the write lock.
func (d *DebugAccessor) Update(fn func(*Snapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.snap)
	d.snap.Taken = time.Now()
}

// RecordEvent counts a lifecycle event and keeps it as the latest one.
func (d *DebugAccessor) RecordEvent(e client.Event) {
	d.Update(func(s *Snapshot) {
		s.Events++
		s.LastEvent = &e
	})
}
