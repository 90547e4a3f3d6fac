package model

import "time"

// VerificationMethod is the kind of evidence backing a kill attempt.
type VerificationMethod string

const (
	VerifyButton VerificationMethod = "BUTTON"
	VerifyPhoto  VerificationMethod = "PHOTO"
	VerifyNFC    VerificationMethod = "NFC"
	VerifyGPS    VerificationMethod = "GPS"
)

// VerificationStatus is the review state of a kill.
type VerificationStatus string

const (
	KillPending       VerificationStatus = "PENDING"
	KillPendingReview VerificationStatus = "PENDING_REVIEW"
	KillVerified      VerificationStatus = "VERIFIED"
	KillRejected      VerificationStatus = "REJECTED"
)

// VerificationData carries method-specific evidence. PHOTO kills store the
// SHA-256 of the submitted image; NFC kills store the scanned tag.
type VerificationData struct {
	PhotoHash string `json:"photoHash,omitempty"`
	PhotoURL  string `json:"photoUrl,omitempty"`
	NFCTagID  string `json:"nfcTagId,omitempty"`
	Note      string `json:"note,omitempty"`
}

// Kill is one elimination attempt, keyed by (killerId, killTime).
// At most one VERIFIED kill per victim exists in a game.
type Kill struct {
	KillerID string    `json:"killerId"`
	KillTime time.Time `json:"killTime"`
	GameID   string    `json:"gameId"`
	VictimID string    `json:"victimId"`

	Location Coordinate         `json:"location"`
	Method   VerificationMethod `json:"verificationMethod"`
	Status   VerificationStatus `json:"verificationStatus"`
	Data     VerificationData   `json:"verificationData"`

	VerifiedBy string     `json:"verifiedBy,omitempty"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
}
