package model

import "time"

// AnonymousUser is the sender name used when an identity has no email.
const AnonymousUser = "Anonymous"

// Session is a live session issued by the identity provider.
type Session struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	IDToken      string    `json:"-"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"-"`
}

// Identity is who the client is acting as. An offline identity is derived
// from stored credentials alone and has no verified session behind it.
type Identity struct {
	UID     string
	Email   string
	Offline bool
}

// IdentityFromSession builds an authenticated identity from a live session.
func IdentityFromSession(s Session) Identity {
	return Identity{UID: s.UID, Email: s.Email}
}

// OfflineIdentity builds a degraded identity bearing only the stored email.
func OfflineIdentity(email string) Identity {
	return Identity{Email: email, Offline: true}
}

// DisplayName is the sender string written into outbound messages.
func (i Identity) DisplayName() string {
	if i.Email == "" {
		return AnonymousUser
	}
	return i.Email
}
