// internal/api/users/set-role/models.go
package setrole

type Input struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
}

type Output struct {
	Success bool   `json:"success"`
	UID     string `json:"uid"`
	Role    string `json:"role"`
}
