package service

import (
	"context"
	"time"
)

// Orphan reasons reported with a BlobOrphanedEvent.
const (
	OrphanReasonDeleteFailed = "delete_failed"
	OrphanReasonCommitFailed = "commit_failed"
)

// BlobOrphanedEvent reports a blob that no post references any more but could
// not be removed inline. A cleanup consumer reclaims it out of band.
type BlobOrphanedEvent struct {
	RequestID  string    `json:"request_id,omitempty"` // For distributed tracing
	BlobKey    string    `json:"blob_key"`
	PostID     string    `json:"post_id,omitempty"`
	Reason     string    `json:"reason"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishBlobOrphaned publishes an orphaned blob for later reclamation.
	PublishBlobOrphaned(ctx context.Context, event *BlobOrphanedEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
