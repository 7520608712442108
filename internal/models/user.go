// internal/models/user.go
package models

import "time"

const (
	RoleRegular = "regular"
	RoleExpert  = "expert"
)

type User struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	Role        string    `json:"role"`
	Banned      bool      `json:"banned"`
	PushToken   string    `json:"-"`
	Phone       string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Admin is a console operator account, provisioned by a super admin.
type Admin struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	SuperAdmin  bool      `json:"superAdmin"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}
