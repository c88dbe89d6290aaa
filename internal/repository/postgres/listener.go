package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"braindump/internal/domain/models"
)

// ChangePublisher receives change events decoded from NOTIFY payloads.
type ChangePublisher interface {
	Publish(ctx context.Context, event models.ChangeEvent) error
}

// ChangeListener forwards rows changed by any writer, including ones that
// bypass this service, from the documents trigger onto a publisher.
type ChangeListener struct {
	pool      *pgxpool.Pool
	channel   string
	publisher ChangePublisher
	logger    *slog.Logger
	retry     time.Duration
}

// NewChangeListener creates a listener for the documents change channel.
func NewChangeListener(config *RepositoryConfig, publisher ChangePublisher) *ChangeListener {
	return &ChangeListener{
		pool:      config.Pool,
		channel:   config.Tables.ChangeChannel(),
		publisher: publisher,
		logger:    config.Logger,
		retry:     2 * time.Second,
	}
}

// Run listens until ctx is cancelled, reconnecting after connection loss.
func (l *ChangeListener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("change listener disconnected, retrying",
			"channel", l.channel,
			"error", err,
			"retry_in", l.retry,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.retry):
		}
	}
}

func (l *ChangeListener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf(`LISTEN %q`, l.channel)); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	l.logger.Info("change listener started", "channel", l.channel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		event, err := DecodeChangePayload(n.Payload)
		if err != nil {
			l.logger.Warn("discarding malformed notification", "payload", n.Payload, "error", err)
			continue
		}
		if err := l.publisher.Publish(ctx, event); err != nil {
			l.logger.Error("publish change event failed",
				"owner_id", event.OwnerID,
				"document_id", event.DocumentID,
				"error", err,
			)
		}
	}
}

// DecodeChangePayload parses the JSON built by the documents trigger.
func DecodeChangePayload(payload string) (models.ChangeEvent, error) {
	var raw struct {
		OwnerID    string `json:"ownerId"`
		DocumentID string `json:"documentId"`
		Op         string `json:"op"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("decode payload: %w", err)
	}
	if raw.OwnerID == "" || raw.DocumentID == "" {
		return models.ChangeEvent{}, errors.New("payload missing owner or document id")
	}

	var op models.ChangeOp
	switch raw.Op {
	case "insert":
		op = models.ChangeCreated
	case "update":
		op = models.ChangeUpdated
	case "delete":
		op = models.ChangeDeleted
	default:
		return models.ChangeEvent{}, fmt.Errorf("unknown op %q", raw.Op)
	}

	return models.ChangeEvent{
		OwnerID:    raw.OwnerID,
		DocumentID: raw.DocumentID,
		Op:         op,
		At:         time.Now(),
	}, nil
}
