package model

// Credentials is the last-used email/password pair kept for silent
// re-authentication at startup.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
