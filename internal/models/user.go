package models

// User is the owner of a budget plan and the recipient of notices
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}
