// internal/api/admins/create-admin/models.go
package createadmin

type Input struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	SuperAdmin  bool   `json:"superAdmin"`
}

type Output struct {
	Success     bool   `json:"success"`
	UID         string `json:"uid"`
	Email       string `json:"email"`
	SuperAdmin  bool   `json:"superAdmin"`
	WelcomeSent bool   `json:"welcomeSent"`
}
