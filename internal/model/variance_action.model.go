package model

import "time"

// ActionType names one audit log entry kind. The action log is append
// only; entries are never edited or deleted.
type ActionType string

const (
	ActionCreated         ActionType = "created"
	ActionInvestigated    ActionType = "investigated"
	ActionCategoryUpdated ActionType = "category_updated"
	ActionManagerReviewed ActionType = "manager_reviewed"
	ActionApproved        ActionType = "approved"
	ActionRejected        ActionType = "rejected"
	ActionResolved        ActionType = "resolved"
	ActionEscalated       ActionType = "escalated"
	ActionCommentAdded    ActionType = "comment_added"
)

// VarianceAction is one row of a variance case's audit trail. OldValue and
// NewValue carry whatever field the action changed, as strings, so the
// trail reads without joins.
type VarianceAction struct {
	ID         int64      `json:"id"`
	VarianceID int64      `json:"variance_id"`
	ActionType ActionType `json:"action_type"`
	ActionBy   string     `json:"action_by"`
	Notes      string     `json:"notes,omitempty"`
	OldValue   string     `json:"old_value,omitempty"`
	NewValue   string     `json:"new_value,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
