package auth

import "time"

// Account is a user account in the project directory.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"passwordHash"`
	IsActive     bool      `json:"isActive"`
	CreatedDate  time.Time `json:"createdDate"`
}
