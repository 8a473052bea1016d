package model

import "time"

// User is a platform account. Role/menu assignment lives outside this
// service; the exam core only needs the identity triple.
type User struct {
	ID           int64     `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	OrgID        string    `json:"org_id"`
	SuperAdmin   bool      `json:"is_super_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the payload for password authentication.
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=1,max=64"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}
