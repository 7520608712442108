// internal/api/reports/map-posts/models.go
package mapposts

import "kalikascan-admin/internal/models"

type Input struct {
	Limit       int
	Offset      int
	FlaggedOnly bool
}

type Output struct {
	Posts  []models.MapPost `json:"posts"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}
