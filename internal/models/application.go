// internal/models/application.go
package models

import "time"

// Application lifecycle statuses. An application is created pending and
// moves to exactly one terminal status through review.
const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusApproved = "approved"
	ApplicationStatusRejected = "rejected"
)

// Review decisions accepted by the review endpoint. A decision names the
// terminal status it produces.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// ExpertApplication is the global projection of an expert application.
// A second projection of the same application lives under the applicant's
// user record and must stay identical field for field.
type ExpertApplication struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	FullName    string     `json:"fullName"`
	Expertise   string     `json:"expertise"`
	Credentials string     `json:"credentials,omitempty"`
	Status      string     `json:"status"`
	ReviewedBy  *string    `json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	ReviewNotes string     `json:"reviewNotes,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsTerminalStatus reports whether a status ends the application lifecycle.
func IsTerminalStatus(status string) bool {
	return status == ApplicationStatusApproved || status == ApplicationStatusRejected
}

// StatusForDecision maps a review decision to the resulting status.
func StatusForDecision(decision string) string {
	if decision == DecisionApproved {
		return ApplicationStatusApproved
	}
	return ApplicationStatusRejected
}

// RoleForDecision maps a review decision to the applicant's resulting role.
func RoleForDecision(decision string) string {
	if decision == DecisionApproved {
		return RoleExpert
	}
	return RoleRegular
}
