package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"braindump/internal/changefeed"
	"braindump/internal/domain"
	"braindump/internal/domain/models"
	"braindump/internal/domain/services"
	"braindump/internal/httputil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// asUser authenticates every request as userID, standing in for the
// session gate.
func asUser(userID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, httputil.WithUserID(r, userID))
	})
}

// memStore is an in-memory DocumentStore publishing on a MemoryBroker.
type memStore struct {
	mu     sync.Mutex
	docs   map[string]*models.Document
	nextID int
	clock  time.Time
	broker *changefeed.MemoryBroker

	listErr error
}

func newMemStore() *memStore {
	return &memStore{
		docs:   make(map[string]*models.Document),
		clock:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		broker: changefeed.NewMemoryBroker(testLogger()),
	}
}

func (s *memStore) add(ownerID, content string) *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(ownerID, &models.Document{Title: models.DefaultDocumentTitle, Content: content})
}

func (s *memStore) insertLocked(ownerID string, doc *models.Document) *models.Document {
	s.nextID++
	s.clock = s.clock.Add(time.Second)
	d := doc.Clone()
	d.ID = fmt.Sprintf("doc-%d", s.nextID)
	d.OwnerID = ownerID
	d.CreatedAt = s.clock
	d.UpdatedAt = s.clock
	s.docs[d.ID] = d
	return d.Clone()
}

func (s *memStore) publish(ctx context.Context, ownerID, id string, op models.ChangeOp) {
	_ = s.broker.Publish(ctx, models.ChangeEvent{OwnerID: ownerID, DocumentID: id, Op: op, At: s.clock})
}

func (s *memStore) List(_ context.Context, ownerID string) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []models.Document{}
	for _, d := range s.docs {
		if d.OwnerID == ownerID {
			out = append(out, *d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *memStore) Get(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return d.Clone(), nil
}

func (s *memStore) Latest(ctx context.Context, ownerID string) (*models.Document, error) {
	docs, _ := s.List(ctx, ownerID)
	if len(docs) == 0 {
		return nil, fmt.Errorf("latest document: %w", domain.ErrNotFound)
	}
	return &docs[0], nil
}

func (s *memStore) Create(ctx context.Context, ownerID string, doc *models.Document) (*models.Document, error) {
	if len([]rune(doc.Title)) > 255 {
		return nil, fmt.Errorf("%w: title too long", domain.ErrValidation)
	}
	s.mu.Lock()
	created := s.insertLocked(ownerID, doc)
	s.mu.Unlock()
	s.publish(ctx, ownerID, created.ID, models.ChangeCreated)
	return created, nil
}

func (s *memStore) Update(ctx context.Context, doc *models.Document) (*models.Document, error) {
	s.mu.Lock()
	existing, ok := s.docs[doc.ID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
	}
	s.clock = s.clock.Add(time.Second)
	d := doc.Clone()
	d.OwnerID = existing.OwnerID
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = s.clock
	s.docs[d.ID] = d
	s.mu.Unlock()
	s.publish(ctx, d.OwnerID, d.ID, models.ChangeUpdated)
	return d.Clone(), nil
}

func (s *memStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	d, ok := s.docs[id]
	delete(s.docs, id)
	s.mu.Unlock()
	if ok {
		s.publish(ctx, d.OwnerID, id, models.ChangeDeleted)
	}
	return ok, nil
}

func (s *memStore) DeleteAndEnsure(ctx context.Context, ownerID, id string) (*models.Document, error) {
	s.mu.Lock()
	d, ok := s.docs[id]
	if !ok || d.OwnerID != ownerID {
		s.mu.Unlock()
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	delete(s.docs, id)
	remaining := 0
	for _, d := range s.docs {
		if d.OwnerID == ownerID {
			remaining++
		}
	}
	var created *models.Document
	if remaining == 0 {
		created = s.insertLocked(ownerID, models.NewDocument(ownerID))
	}
	s.mu.Unlock()

	s.publish(ctx, ownerID, id, models.ChangeDeleted)
	if created != nil {
		s.publish(ctx, ownerID, created.ID, models.ChangeCreated)
	}
	return created, nil
}

func (s *memStore) SubscribeToChanges(ctx context.Context, ownerID string) (*changefeed.Subscription, error) {
	return s.broker.Subscribe(ctx, ownerID)
}

// echoTransformer titles every result "Echo" and wraps the raw text.
type echoTransformer struct{}

func (echoTransformer) Transform(_ context.Context, raw string) models.ProcessedDocument {
	blocks := []models.ContentBlock{{Type: models.BlockMarkdown, Content: "> " + raw}}
	return models.ProcessedDocument{Title: "Echo", Content: models.JoinBlocks(blocks), Blocks: blocks}
}

// fakeProcessor returns a fixed outcome.
type fakeProcessor struct {
	store   *memStore
	outcome services.ProcessOutcome
}

func (p *fakeProcessor) Process(ctx context.Context, ownerID, id string) (*models.Document, services.ProcessOutcome, error) {
	doc, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if doc.OwnerID != ownerID {
		return nil, "", fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc, p.outcome, nil
}

// fakePrefsService keeps one theme per user.
type fakePrefsService struct {
	mu     sync.Mutex
	themes map[uuid.UUID]models.Theme
}

func (f *fakePrefsService) prefs(userID uuid.UUID) *models.UserPreferences {
	theme, ok := f.themes[userID]
	if !ok {
		theme = models.DefaultTheme
	}
	p := &models.UserPreferences{UserID: userID}
	ui := models.DefaultUIPreferences()
	ui.Theme = theme.String()
	_ = p.SetUI(ui)
	return p
}

func (f *fakePrefsService) GetPreferences(_ context.Context, userID uuid.UUID) (*models.UserPreferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prefs(userID), nil
}

func (f *fakePrefsService) UpdatePreferences(_ context.Context, userID uuid.UUID, req *models.UpdatePreferencesRequest) (*models.UserPreferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Theme != nil {
		theme, err := models.ParseTheme(*req.Theme)
		if err != nil {
			return nil, err
		}
		f.themes[userID] = theme
	}
	return f.prefs(userID), nil
}

func (f *fakePrefsService) CycleTheme(_ context.Context, userID uuid.UUID) (*models.UserPreferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	theme, ok := f.themes[userID]
	if !ok {
		theme = models.DefaultTheme
	}
	f.themes[userID] = theme.Next()
	return f.prefs(userID), nil
}
