// internal/api/applications/review-application/models.go
package reviewapplication

import "kalikascan-admin/internal/notifier"

type Input struct {
	ApplicationID string  `json:"applicationId"`
	ApplicantID   string  `json:"applicantId"`
	Decision      string  `json:"decision"`
	AdminNote     *string `json:"adminNote,omitempty"`
}

type Output struct {
	Success       bool            `json:"success"`
	ApplicationID string          `json:"applicationId"`
	ApplicantID   string          `json:"applicantId"`
	Status        string          `json:"status"`
	ReviewedAt    string          `json:"reviewedAt"` // ISO 8601
	Notification  notifier.Report `json:"notification"`
}
