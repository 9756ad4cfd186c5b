package domain

import "time"

// Role роль пользователя
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User учётная запись покупателя или администратора
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Actor аутентифицированный вызывающий, от имени которого выполняется операция
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
