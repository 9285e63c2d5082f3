// Package model defines the records stored by MindMate and the request and
// response bodies of its HTTP API.
package model

import "time"

// User is a registered end user. Email is the subject identity that stress
// records are keyed by.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Admin is an operator account for the admin dashboard.
type Admin struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
