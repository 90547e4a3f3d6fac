package model

import "time"

// AssignmentStatus is the state of a hunter→target edge.
type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "ACTIVE"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
	AssignmentCancelled AssignmentStatus = "CANCELLED"
)

// TargetAssignment is one hunter→target edge. Rows are append-only: history
// is preserved and the current edge for a hunter is the single ACTIVE one.
// The ACTIVE edges of a game form exactly one cycle over its ACTIVE players.
type TargetAssignment struct {
	ID             string           `json:"id"`
	GameID         string           `json:"gameId"`
	AssignerID     string           `json:"assignerId"`
	TargetID       string           `json:"targetId"`
	Status         AssignmentStatus `json:"status"`
	AssignmentDate time.Time        `json:"assignmentDate"`
	CompletedDate  *time.Time       `json:"completedDate,omitempty"`
}
