package session

import (
	"time"

	"braindump/internal/domain/models"
)

// Status describes how the editor buffer relates to the stored document.
type Status string

const (
	StatusClean        Status = "clean"
	StatusDirtyUnsaved Status = "dirty"
	StatusSaving       Status = "saving"
	StatusError        Status = "error"
)

// User-facing failure messages.
const (
	msgLoadFailed   = "Failed to load your documents. Please try again later."
	msgSaveFailed   = "Failed to save document. Please try again later."
	msgCreateFailed = "Failed to create a new document. Please try again later."
	msgDeleteFailed = "Failed to delete document. Please try again later."
)

// DocumentSummary is one entry of the document picker.
type DocumentSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Label     string    `json:"label"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// View is everything a client needs to render the session.
type View struct {
	Documents        []DocumentSummary     `json:"documents"`
	ActiveID         string                `json:"activeId"`
	Buffer           string                `json:"buffer"`
	Title            string                `json:"title"`
	ProcessedContent *string               `json:"processedContent"`
	ProcessedBlocks  []models.ContentBlock `json:"processedBlocks"`
	Status           Status                `json:"status"`
	Processing       bool                  `json:"processing"`
	Error            string                `json:"error,omitempty"`
}

// pendingWrite is a merged, not yet dispatched update for one document.
// A nil field leaves the stored value alone.
type pendingWrite struct {
	content   *string
	processed *models.ProcessedDocument
	hash      *string
}

func (p *pendingWrite) merge(o pendingWrite) {
	if o.content != nil {
		p.content = o.content
	}
	if o.processed != nil {
		p.processed = o.processed
	}
	if o.hash != nil {
		p.hash = o.hash
	}
}

// docWrites serializes updates to one document: one in flight, the rest
// coalesced into next.
type docWrites struct {
	inFlight        bool
	inFlightContent *string
	inFlightHash    *string
	next            *pendingWrite
}

// transformTicket identifies the newest transform started for a document.
type transformTicket struct {
	hash string
	seq  uint64
}
