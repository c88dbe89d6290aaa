package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"braindump/internal/changefeed"
	"braindump/internal/contenthash"
	"braindump/internal/domain"
	"braindump/internal/domain/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory DocumentStore that publishes change events like
// the real one.
type fakeStore struct {
	mu      sync.Mutex
	docs    map[string]*models.Document
	nextID  int
	clock   time.Time
	written []string
	broker  *changefeed.MemoryBroker

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	// updateGate, when set, holds every Update until a value is received.
	updateGate chan struct{}
	inUpdate   int

	// deleteGate, when set, holds DeleteAndEnsure until it is closed.
	deleteGate chan struct{}

	// afterList, when set, runs once after the next List has read its rows.
	afterList func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:   make(map[string]*models.Document),
		clock:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		broker: changefeed.NewMemoryBroker(testLogger()),
	}
}

func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// seed adds a document directly, bypassing events. A non-empty content gets
// a matching hash so the session does not issue a seeding write.
func (s *fakeStore) seed(owner, title, content string) *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := s.tick()
	doc := &models.Document{
		ID:        fmt.Sprintf("doc-%d", s.nextID),
		OwnerID:   owner,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if content != "" {
		hash := contenthash.Hash(content)
		doc.ContentHash = &hash
	}
	s.docs[doc.ID] = doc
	return doc.Clone()
}

func (s *fakeStore) get(id string) *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[id]; ok {
		return d.Clone()
	}
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// contentWrites returns the content of every update that changed it.
func (s *fakeStore) contentWrites() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.written...)
}

func (s *fakeStore) updatesInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUpdate
}

// releaseUpdates lets the held Update finish and stops holding new ones.
func (s *fakeStore) releaseUpdates() {
	s.mu.Lock()
	gate := s.updateGate
	s.updateGate = nil
	s.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (s *fakeStore) setUpdateErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateErr = err
}

// externalEdit changes a document as another client would.
func (s *fakeStore) externalEdit(id, content string) {
	s.mu.Lock()
	d := s.docs[id]
	d.Content = content
	d.UpdatedAt = s.tick()
	owner := d.OwnerID
	s.mu.Unlock()
	_ = s.broker.Publish(context.Background(), models.ChangeEvent{OwnerID: owner, DocumentID: id, Op: models.ChangeUpdated})
}

func (s *fakeStore) List(ctx context.Context, ownerID string) ([]models.Document, error) {
	docs, err := s.list(ownerID)
	s.mu.Lock()
	hook := s.afterList
	s.afterList = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return docs, err
}

func (s *fakeStore) list(ownerID string) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Document, 0, len(s.docs))
	for _, d := range s.docs {
		if d.OwnerID == ownerID {
			out = append(out, *d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *fakeStore) Get(ctx context.Context, id string) (*models.Document, error) {
	if d := s.get(id); d != nil {
		return d, nil
	}
	return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
}

func (s *fakeStore) Latest(ctx context.Context, ownerID string) (*models.Document, error) {
	docs, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	return &docs[0], nil
}

func (s *fakeStore) Create(ctx context.Context, ownerID string, doc *models.Document) (*models.Document, error) {
	s.mu.Lock()
	if s.createErr != nil {
		s.mu.Unlock()
		return nil, s.createErr
	}
	s.nextID++
	now := s.tick()
	created := doc.Clone()
	created.ID = fmt.Sprintf("doc-%d", s.nextID)
	created.OwnerID = ownerID
	created.CreatedAt = now
	created.UpdatedAt = now
	s.docs[created.ID] = created
	s.mu.Unlock()

	_ = s.broker.Publish(ctx, models.ChangeEvent{OwnerID: ownerID, DocumentID: created.ID, Op: models.ChangeCreated})
	return created.Clone(), nil
}

func (s *fakeStore) Update(ctx context.Context, doc *models.Document) (*models.Document, error) {
	s.mu.Lock()
	s.inUpdate++
	gate := s.updateGate
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	s.inUpdate--
	if s.updateErr != nil {
		err := s.updateErr
		s.mu.Unlock()
		return nil, err
	}
	existing, ok := s.docs[doc.ID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
	}

	if existing.Content != doc.Content {
		s.written = append(s.written, doc.Content)
	}

	updated := doc.Clone()
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.tick()
	s.docs[doc.ID] = updated
	s.mu.Unlock()

	_ = s.broker.Publish(ctx, models.ChangeEvent{OwnerID: doc.OwnerID, DocumentID: doc.ID, Op: models.ChangeUpdated})
	return updated.Clone(), nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	_, ok := s.docs[id]
	delete(s.docs, id)
	return ok, nil
}

func (s *fakeStore) DeleteAndEnsure(ctx context.Context, ownerID, id string) (*models.Document, error) {
	s.mu.Lock()
	gate := s.deleteGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	if s.deleteErr != nil {
		s.mu.Unlock()
		return nil, s.deleteErr
	}
	delete(s.docs, id)
	remaining := 0
	for _, d := range s.docs {
		if d.OwnerID == ownerID {
			remaining++
		}
	}
	s.mu.Unlock()

	_ = s.broker.Publish(ctx, models.ChangeEvent{OwnerID: ownerID, DocumentID: id, Op: models.ChangeDeleted})
	if remaining > 0 {
		return nil, nil
	}
	return s.Create(ctx, ownerID, models.NewDocument(ownerID))
}

func (s *fakeStore) SubscribeToChanges(ctx context.Context, ownerID string) (*changefeed.Subscription, error) {
	return s.broker.Subscribe(ctx, ownerID)
}

// fakeTransformer records calls and optionally blocks until released.
type fakeTransformer struct {
	mu    sync.Mutex
	calls []string
	gate  chan struct{}
}

func (f *fakeTransformer) Transform(ctx context.Context, raw string) models.ProcessedDocument {
	f.mu.Lock()
	f.calls = append(f.calls, raw)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	blocks := []models.ContentBlock{{Type: models.BlockMarkdown, Content: "## " + raw[:10]}}
	return models.ProcessedDocument{Title: "Processed", Content: models.JoinBlocks(blocks), Blocks: blocks}
}

func (f *fakeTransformer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
