package domain

import (
	"time"
)

type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// 角色缺失或无法识别时一律按普通用户处理
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "Active"
	UserStatusInactive UserStatus = "Inactive"
)

type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Status       UserStatus `json:"status"`
	ProfileImage string     `json:"profile_image"`
	Role         Role       `json:"role"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	Version      int32      `json:"-"`
}
