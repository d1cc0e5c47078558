package domain

import "time"

// Contribution is one accepted quantity increment. Records are append-only:
// never mutated, never deleted.
type Contribution struct {
	ID            string
	ProjectID     string
	ItemName      string
	Quantity      int
	ContributorID string
	CreatedAt     time.Time
}

type EventType string

const (
	EventContributed EventType = "contributed"
	EventCompleted   EventType = "completed"
)

// Event is an append-only log entry written alongside a contribution.
// A "completed" event is emitted only by the write that crossed the
// completion boundary.
type Event struct {
	ID            string
	ProjectID     string
	ItemName      string
	Type          EventType
	Quantity      int
	ContributorID string
	CreatedAt     time.Time
}

// ContributionOutcome reports what an atomic contribution write actually
// applied, computed from the state read at write time.
type ContributionOutcome struct {
	Accepted  int
	Collected int // post-write collected quantity
	Required  int
	Completed bool // this write transitioned the item to completed
}
