// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account. The username is the handle other users
// address when relaying images; it never changes after registration.
type User struct {
	ID           string
	UserName     string
	PasswordHash []byte
	PhoneNumber  string
	CreatedAt    time.Time
}
