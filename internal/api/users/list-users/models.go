// internal/api/users/list-users/models.go
package listusers

import "kalikascan-admin/internal/models"

type Input struct {
	Limit  int
	Offset int
	Search string
}

type Output struct {
	Users  []models.User `json:"users"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}
