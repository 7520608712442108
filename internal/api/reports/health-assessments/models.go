// internal/api/reports/health-assessments/models.go
package healthassessments

import "kalikascan-admin/internal/models"

type Input struct {
	Limit    int
	Offset   int
	Severity string
}

type Output struct {
	Assessments []models.HealthAssessment `json:"assessments"`
	Total       int                       `json:"total"`
	Limit       int                       `json:"limit"`
	Offset      int                       `json:"offset"`
}
