package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string for users and sessions. ULIDs sort by
// creation time, which keeps DynamoDB partition keys well distributed.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
