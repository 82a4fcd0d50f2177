package domain

import (
	"time"
)

type Role string

const (
	RoleMember    Role = "组员"
	RoleManager   Role = "组长"
	RoleExecutive Role = "主管"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	TeamID       *int64    `json:"teamID"` // 为 nil 时表示该用户尚未被分配到任何小组
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	Version      int32     `json:"-"`
}
