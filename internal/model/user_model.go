package model

import (
	"strings"
	"time"
)

const (
	RoleSuperAdmin = "SUPERADMIN"
	RoleAdmin      = "ADMIN"
	RoleEditor     = "EDITOR"
)

type User struct {
	ID                 int64     `gorm:"column:id;primaryKey" json:"id"`
	Email              string    `gorm:"column:email" json:"email"`
	Name               string    `gorm:"column:name" json:"name"`
	PasswordHash       []byte    `gorm:"column:password_hash" json:"-"`
	Roles              string    `gorm:"column:roles" json:"-"`
	MustChangePassword bool      `gorm:"column:must_change_password" json:"must_change_password"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// RoleList splits the comma separated roles column.
func (u User) RoleList() []string {
	var roles []string
	for _, role := range strings.Split(u.Roles, ",") {
		role = strings.TrimSpace(role)
		if role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}
