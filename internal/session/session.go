// Package session runs one user's live editing session: it owns the editor
// buffer, debounces saves and AI transforms, and keeps the document list in
// step with the store.
//
// All state lives on a single event-loop goroutine. Public methods post a
// closure to the loop and wait for it to run; store and transform calls run
// in their own goroutines and post their results back the same way, so
// state is never touched concurrently and every completion re-reads the
// current active document instead of a captured one.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"braindump/internal/changefeed"
	"braindump/internal/debounce"
	"braindump/internal/domain/models"
	"braindump/internal/domain/services"
)

var (
	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("session closed")
	// ErrNoActiveDocument is returned by Edit while no document is open,
	// e.g. while the active document is being deleted.
	ErrNoActiveDocument = errors.New("no active document")
	// ErrSessionFailed is returned after the initial load failed. A new
	// session is required.
	ErrSessionFailed = errors.New("session failed")
)

// Config configures a Controller. Zero durations and thresholds fall back
// to the defaults below.
type Config struct {
	OwnerID     string
	Store       services.DocumentStore
	Transformer services.TransformService
	Logger      *slog.Logger

	SaveDebounce           time.Duration
	TransformDebounce      time.Duration
	MinTransformLength     int
	SignificantChangeDelta int
	StoreTimeout           time.Duration
	TransformTimeout       time.Duration
}

const (
	DefaultSaveDebounce           = 300 * time.Millisecond
	DefaultTransformDebounce      = 1000 * time.Millisecond
	DefaultMinTransformLength     = 110
	DefaultSignificantChangeDelta = 10
	DefaultStoreTimeout           = 10 * time.Second
	DefaultTransformTimeout       = 60 * time.Second
)

func (c Config) withDefaults() Config {
	if c.SaveDebounce <= 0 {
		c.SaveDebounce = DefaultSaveDebounce
	}
	if c.TransformDebounce <= 0 {
		c.TransformDebounce = DefaultTransformDebounce
	}
	if c.MinTransformLength <= 0 {
		c.MinTransformLength = DefaultMinTransformLength
	}
	if c.SignificantChangeDelta <= 0 {
		c.SignificantChangeDelta = DefaultSignificantChangeDelta
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.TransformTimeout <= 0 {
		c.TransformTimeout = DefaultTransformTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Controller is one editing session.
type Controller struct {
	cfg         Config
	ownerID     string
	store       services.DocumentStore
	transformer services.TransformService
	logger      *slog.Logger

	ops       chan func()
	updates   chan View
	done      chan struct{}
	closeOnce sync.Once
	started   atomic.Bool

	saveTimer      *debounce.Debouncer
	transformTimer *debounce.Debouncer

	// Set by Start before the loop runs, read-only afterwards.
	baseCtx context.Context
	sub     *changefeed.Subscription

	// Loop-owned state.
	loaded            bool
	failed            bool
	errMsg            string
	docs              []*models.Document
	active            string
	buffer            string
	deletingActive    bool
	writes            map[string]*docWrites
	transforming      map[string]transformTicket
	transformSeq      uint64
	transformArmedFor string
	deleted           map[string]bool
	pendingDeletes    map[string]bool
	refetching        bool
	refetchAgain      bool
	refetchCreated    map[string]bool

	changedWhileLoading bool
}

// New creates a session. Call Start to load documents.
func New(cfg Config) (*Controller, error) {
	if cfg.OwnerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if cfg.Transformer == nil {
		return nil, fmt.Errorf("transform service is required")
	}
	cfg = cfg.withDefaults()

	c := &Controller{
		cfg:            cfg,
		ownerID:        cfg.OwnerID,
		store:          cfg.Store,
		transformer:    cfg.Transformer,
		logger:         cfg.Logger.With("component", "session", "owner_id", cfg.OwnerID),
		ops:            make(chan func(), 16),
		updates:        make(chan View, 1),
		done:           make(chan struct{}),
		baseCtx:        context.Background(),
		writes:         make(map[string]*docWrites),
		transforming:   make(map[string]transformTicket),
		deleted:        make(map[string]bool),
		pendingDeletes: make(map[string]bool),
		refetchCreated: make(map[string]bool),
	}
	c.saveTimer = debounce.New(cfg.SaveDebounce, func() { c.post(c.onSaveTimer) }, c.logger)
	c.transformTimer = debounce.New(cfg.TransformDebounce, func() { c.post(c.onTransformTimer) }, c.logger)
	return c, nil
}

// Start subscribes to the change feed, loads the owner's documents and
// opens the most recent one, creating an empty document if there are none.
// A failed load leaves the session in a terminal error state.
func (c *Controller) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("session already started")
	}
	c.baseCtx = context.WithoutCancel(ctx)

	sub, err := c.store.SubscribeToChanges(ctx, c.ownerID)
	if err != nil {
		c.logger.Warn("change feed unavailable, remote edits will not be picked up", "error", err)
	} else {
		c.sub = sub
	}

	go c.run()

	loadCtx, cancel := c.storeContext()
	docs, err := c.store.List(loadCtx, c.ownerID)
	cancel()
	if err != nil {
		c.logger.Error("failed to load documents", "error", err)
		_ = c.do(func() error { c.fail(msgLoadFailed); return nil })
		return fmt.Errorf("%w: load documents: %v", ErrSessionFailed, err)
	}

	if len(docs) == 0 {
		createCtx, cancel := c.storeContext()
		created, err := c.store.Create(createCtx, c.ownerID, models.NewDocument(c.ownerID))
		cancel()
		if err != nil {
			c.logger.Error("failed to create initial document", "error", err)
			_ = c.do(func() error { c.fail(msgCreateFailed); return nil })
			return fmt.Errorf("%w: create initial document: %v", ErrSessionFailed, err)
		}
		docs = []models.Document{*created}
	}

	return c.do(func() error {
		c.bootstrap(docs)
		return nil
	})
}

// Edit replaces the editor buffer of the active document.
func (c *Controller) Edit(content string) error {
	return c.do(func() error { return c.edit(content) })
}

// Select opens another document. Unsaved edits to the current one are
// flushed to its own record first.
func (c *Controller) Select(id string) error {
	return c.do(func() error { return c.selectDocument(id) })
}

// Create stores a new empty document and opens it.
func (c *Controller) Create(ctx context.Context) (*models.Document, error) {
	reply := make(chan createResult, 1)
	if err := c.do(func() error { return c.startCreate(reply) }); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.doc, r.err
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Delete removes a document. Deleting the open document moves the session
// to another one, or to a new empty document when none remain.
func (c *Controller) Delete(ctx context.Context, id string) error {
	reply := make(chan error, 1)
	if err := c.do(func() error { return c.startDelete(id, reply) }); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() (View, error) {
	var v View
	err := c.do(func() error {
		v = c.view()
		return nil
	})
	return v, err
}

// Updates delivers the latest view after every state change. Intermediate
// views are dropped when the reader falls behind.
func (c *Controller) Updates() <-chan View {
	return c.updates
}

// Done is closed when the session is closed.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Close stops the timers, unsubscribes from the change feed and stops the
// loop. Store and transform calls already running complete in the
// background; their results are discarded.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.saveTimer.Stop()
		c.transformTimer.Stop()
		close(c.done)
		if c.sub != nil {
			c.sub.Close()
		}
		c.logger.Debug("session closed")
	})
}

// do runs fn on the loop and returns its result.
func (c *Controller) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.ops <- func() { reply <- fn() }:
	case <-c.done:
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// post queues fn for the loop; dropped once the session is closed.
func (c *Controller) post(fn func()) {
	select {
	case c.ops <- fn:
	case <-c.done:
	}
}

func (c *Controller) run() {
	var changes <-chan models.ChangeEvent
	if c.sub != nil {
		changes = c.sub.C
	}

	for {
		select {
		case <-c.done:
			return
		case fn := <-c.ops:
			fn()
		case ev, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			c.onRemoteChange(ev)
		}
		c.publish()
	}
}

// publish offers the current view, replacing an unread older one.
func (c *Controller) publish() {
	v := c.view()
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- v:
	default:
	}
}

func (c *Controller) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.baseCtx, c.cfg.StoreTimeout)
}

func (c *Controller) transformContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.baseCtx, c.cfg.TransformTimeout)
}
