// internal/api/users/toggle-ban/models.go
package toggleban

type Input struct {
	UID string `json:"uid"`
}

type Output struct {
	Success bool   `json:"success"`
	UID     string `json:"uid"`
	Banned  bool   `json:"banned"`
}
