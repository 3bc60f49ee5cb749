package fx

import "github.com/google/uuid"

// WriteSet is the unit of work a service hands to storage. Either all writes
// commit or none do. Services stay pure; a thin store adapter applies the
// set atomically.
type WriteSet struct {
	PutMovements      []Movement
	DeleteMovementIDs []uuid.UUID

	PutHoldings      []Holding
	DeleteHoldingIDs []uuid.UUID

	PutDebts []Debt

	PutPostings      []Posting
	DeletePostingIDs []uuid.UUID
	// UnlinkPostingIDs strips the movement back-reference from postings
	// without deleting them.
	UnlinkPostingIDs []uuid.UUID
}

// Empty reports whether the set contains no writes.
func (ws WriteSet) Empty() bool {
	return len(ws.PutMovements) == 0 && len(ws.DeleteMovementIDs) == 0 &&
		len(ws.PutHoldings) == 0 && len(ws.DeleteHoldingIDs) == 0 &&
		len(ws.PutDebts) == 0 && len(ws.PutPostings) == 0 &&
		len(ws.DeletePostingIDs) == 0 && len(ws.UnlinkPostingIDs) == 0
}
