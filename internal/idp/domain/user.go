package domain

import "time"

// UserRecord is the internal-database view of a principal, supplied by the
// injected user-lookup capability.
type UserRecord struct {
	ID       string
	ZoneID   string
	Origin   string
	Username string

	// PasswordHash is a PHC-encoded hash checked by the injected verifier.
	PasswordHash string

	// TOTPSecret enables a second factor when non-empty.
	TOTPSecret string

	Authorities []string
	Active      bool

	CreatedAt time.Time
}

// ClientRecord is a registered OAuth2 client able to authenticate with its
// own credentials.
type ClientRecord struct {
	ID     string
	ZoneID string

	SecretHash  string
	Authorities []string
	Active      bool
}
