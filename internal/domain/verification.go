package domain

import (
	"fmt"
	"time"
)

// Purpose namespaces confirmation records so one user can hold several
// independent keys (email, phone) without collisions.
type Purpose string

const (
	PurposeEmail Purpose = "email"
	PurposePhone Purpose = "phone"
)

// ConfirmationTTL is how long an issued key stays redeemable.
const ConfirmationTTL = 24 * time.Hour

// MaxVerifyAttempts is how many wrong keys a subject may submit for one
// purpose before the live key is discarded.
const MaxVerifyAttempts = 5

// KeyFor returns the store key for a confirmation record.
// The shape is shared with external tooling and must not change.
func KeyFor(subjectID string, purpose Purpose) string {
	return fmt.Sprintf("user:%s:key:%s", subjectID, purpose)
}

// ConfirmedField is the user attribute flipped when a key of this purpose is redeemed.
func (p Purpose) ConfirmedField() string {
	switch p {
	case PurposePhone:
		return "phone_confirmed"
	default:
		return "email_confirmed"
	}
}

// ConfirmationRecord is the DynamoDB projection of a stored key.
// PK: user_id, SK: type. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type ConfirmationRecord struct {
	UserID    string `json:"user_id" dynamodbav:"user_id"`
	Type      string `json:"type" dynamodbav:"type"`
	Key       string `json:"key" dynamodbav:"key"`
	Value     string `json:"value" dynamodbav:"value"` // JSON-encoded token
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"`
	Attempts  int    `json:"attempts,omitempty" dynamodbav:"attempts,omitempty"`
}
