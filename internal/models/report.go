// internal/models/report.go
package models

import "time"

// PlantScan is one scan event as indexed in Elasticsearch.
type PlantScan struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	PlantName  string    `json:"plantName"`
	Disease    string    `json:"disease,omitempty"`
	Confidence float64   `json:"confidence"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Latitude   float64   `json:"latitude,omitempty"`
	Longitude  float64   `json:"longitude,omitempty"`
	ScannedAt  time.Time `json:"scannedAt"`
}

// MapPost is a community sighting shared to the map.
type MapPost struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	PlantName string    `json:"plantName,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Flagged   bool      `json:"flagged"`
	CreatedAt time.Time `json:"createdAt"`
}

// HealthAssessment is an expert-reviewed plant health record.
type HealthAssessment struct {
	ID          string    `json:"id"`
	ScanID      string    `json:"scanId"`
	UserID      string    `json:"userId"`
	ExpertUID   string    `json:"expertUid,omitempty"`
	Diagnosis   string    `json:"diagnosis"`
	Severity    string    `json:"severity"`
	Treatment   string    `json:"treatment,omitempty"`
	AssessedAt  time.Time `json:"assessedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}
