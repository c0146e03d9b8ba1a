package models

// User is a staff account allowed to manage payment plans. Approvals record
// the acting user's email as the approver.
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // Not serialized
	CreatedAt    string `json:"created_at"`
}
