package model

import "slices"

type Session struct {
	Authenticated      bool
	UserID             int64
	Email              string
	Roles              []string
	MustChangePassword bool
}

func (s Session) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if slices.Contains(s.Roles, role) {
			return true
		}
	}
	return false
}
