package domain

import "time"

// ReleaseChallenge is the live one-time-code record guarding crypto release.
// Only the Argon2id hash of the code is ever stored; the plaintext exists
// solely in the out-of-band delivery to the receiver.
type ReleaseChallenge struct {
	CodeHash  string    `json:"code_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int64     `json:"attempts"` // remaining invalid-code attempts
}

// Expired reports whether the challenge can no longer be confirmed.
func (c *ReleaseChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ChallengeHandle is the client-facing description of an issued challenge.
// It never carries the code itself.
type ChallengeHandle struct {
	Reference   string    `json:"reference"`
	DeliveredTo string    `json:"delivered_to"` // masked destination, e.g. a***@mail.com
	ExpiresAt   time.Time `json:"expires_at"`
	Attempts    int64     `json:"attempts"`
}
