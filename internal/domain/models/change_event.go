package models

import "time"

// ChangeOp names the kind of mutation in a ChangeEvent.
type ChangeOp string

const (
	ChangeCreated ChangeOp = "created"
	ChangeUpdated ChangeOp = "updated"
	ChangeDeleted ChangeOp = "deleted"
)

// ChangeEvent announces that one of an owner's documents changed. It carries
// no document body; subscribers re-fetch.
type ChangeEvent struct {
	OwnerID    string    `json:"ownerId"`
	DocumentID string    `json:"documentId"`
	Op         ChangeOp  `json:"op"`
	At         time.Time `json:"at"`
}
