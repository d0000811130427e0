package entity

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) String() string {
	return string(r)
}

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
	TOTPSecret   []byte // sealed
	TwoFAEnabled bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSecret reports whether a TOTP secret was ever provisioned.
func (u *User) HasSecret() bool {
	return len(u.TOTPSecret) > 0
}

type NewUser struct {
	ID           int64
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
	CreatedAt    time.Time
}
