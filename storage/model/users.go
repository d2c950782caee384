package model

import (
	"time"
)

// User is an admin user of the admin API.
// As long as no user exists the admin API is open.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Username string `gorm:"uniqueIndex;size:128" json:"username"`
	// PasswordHash is a PHC formatted argon2id hash
	PasswordHash string `json:"-"`
	DisplayName  string `json:"display_name"`
	Disabled     bool   `json:"disabled"`
}

// UsersStore abstracts CRUD and authentication for admin users.
type UsersStore interface {
	Count() (int64, error)
	List() ([]User, error)
	Get(username string) (*User, error)
	// Create creates a user; the implementation must hash the password
	Create(username, password, displayName string) (*User, error)
	// Update changes display name, password, or disabled state; nil values
	// are left untouched
	Update(username string, displayName, newPassword *string, disabled *bool) (*User, error)
	Delete(username string) error
	// Authenticate checks a username/password combination
	Authenticate(username, password string) (*User, error)
}
