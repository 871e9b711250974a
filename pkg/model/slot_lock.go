package model

import "time"

// SlotLock is an advisory lock that serializes concurrent reservation creation
// for a single facility. The _id is derived from the facility id, so a second
// in-flight booking attempt hits a duplicate-key error instead of racing the
// availability check.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
