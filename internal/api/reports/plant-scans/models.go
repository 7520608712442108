// internal/api/reports/plant-scans/models.go
package plantscans

import "kalikascan-admin/internal/models"

type Input struct {
	Keywords string
	UserID   string
	Disease  string
	From     int
	Size     int
}

type Output struct {
	Scans     []models.PlantScan `json:"scans"`
	TotalHits int64              `json:"totalHits"`
	Took      int64              `json:"took"`
	From      int                `json:"from"`
	Size      int                `json:"size"`
}
