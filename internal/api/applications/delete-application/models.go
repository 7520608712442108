// internal/api/applications/delete-application/models.go
package deleteapplication

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	Success       bool   `json:"success"`
	ApplicationID string `json:"applicationId"`
	DeletedAt     string `json:"deletedAt"` // ISO 8601
}
