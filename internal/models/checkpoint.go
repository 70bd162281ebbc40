package models

import "time"

// Cursor marks how far one channel has been read
type Cursor struct {
	Position  int64     `json:"position"`  // Adapter native resume point: EventRecordID or byte offset, 0 = none yet
	LastSeen  time.Time `json:"last_seen"` // Newest timestamp reflected in the cursor
	Inclusive bool      `json:"inclusive"` // Records stamped exactly LastSeen are still wanted (default window seeds)
	Rewound   bool      `json:"rewound"`   // Position was reset and may replay lines already read
}

// After reports whether ts is past the cursor's timestamp bound
func (c Cursor) After(ts time.Time) bool {
	if c.LastSeen.IsZero() {
		return true
	}
	if c.Inclusive {
		return !ts.Before(c.LastSeen)
	}
	return ts.After(c.LastSeen)
}

// Checkpoint holds one cursor per channel. Only the owning source writes it, between cycles.
type Checkpoint map[string]Cursor

// Clone returns an independent copy
func (c Checkpoint) Clone() Checkpoint {
	out := make(Checkpoint, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
