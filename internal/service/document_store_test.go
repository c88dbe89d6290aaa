package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"braindump/internal/changefeed"
	"braindump/internal/domain"
	"braindump/internal/domain/models"
	"braindump/internal/domain/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockDocumentRepo is an in-memory DocumentRepository.
type mockDocumentRepo struct {
	mu       sync.Mutex
	docs     map[string]*models.Document
	clock    time.Time
	failNext error
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{
		docs:  make(map[string]*models.Document),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *mockDocumentRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *mockDocumentRepo) takeErr() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *mockDocumentRepo) ListByOwner(_ context.Context, ownerID string) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	out := []models.Document{}
	for _, d := range m.docs {
		if d.OwnerID == ownerID {
			out = append(out, *d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *mockDocumentRepo) GetByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	d, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return d.Clone(), nil
}

func (m *mockDocumentRepo) GetLatest(ctx context.Context, ownerID string) (*models.Document, error) {
	docs, err := m.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("latest document for %s: %w", ownerID, domain.ErrNotFound)
	}
	return &docs[0], nil
}

func (m *mockDocumentRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	docs, err := m.ListByOwner(ctx, ownerID)
	return len(docs), err
}

func (m *mockDocumentRepo) Create(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	doc.ID = uuid.NewString()
	doc.CreatedAt = m.tick()
	doc.UpdatedAt = doc.CreatedAt
	m.docs[doc.ID] = doc.Clone()
	return nil
}

func (m *mockDocumentRepo) Update(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	existing, ok := m.docs[doc.ID]
	if !ok {
		return fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
	}
	doc.OwnerID = existing.OwnerID
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = m.tick()
	m.docs[doc.ID] = doc.Clone()
	return nil
}

func (m *mockDocumentRepo) Delete(_ context.Context, id string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return "", false, err
	}
	d, ok := m.docs[id]
	if !ok {
		return "", false, nil
	}
	delete(m.docs, id)
	return d.OwnerID, true, nil
}

// inlineTx runs the function without a real transaction.
type inlineTx struct{}

func (inlineTx) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}

func newTestStore(t *testing.T) (*documentStore, *mockDocumentRepo, *changefeed.MemoryBroker) {
	t.Helper()
	repo := newMockDocumentRepo()
	broker := changefeed.NewMemoryBroker(testLogger())
	t.Cleanup(func() { broker.Close() })
	store := NewDocumentStore(repo, inlineTx{}, broker, testLogger()).(*documentStore)
	return store, repo, broker
}

func expectEvent(t *testing.T, sub *changefeed.Subscription, op models.ChangeOp) models.ChangeEvent {
	t.Helper()
	select {
	case ev := <-sub.C:
		if ev.Op != op {
			t.Fatalf("event op = %s, want %s", ev.Op, op)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatalf("no %s event", op)
	}
	return models.ChangeEvent{}
}

func TestDocumentStoreCreateDefaultsAndPublishes(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	sub, err := store.SubscribeToChanges(ctx, "owner-1")
	if err != nil {
		t.Fatalf("SubscribeToChanges() error: %v", err)
	}
	defer sub.Close()

	doc, err := store.Create(ctx, "owner-1", &models.Document{Content: ""})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if doc.ID == "" || doc.Title != "Untitled" || doc.OwnerID != "owner-1" {
		t.Errorf("Create() = %+v", doc)
	}

	ev := expectEvent(t, sub, models.ChangeCreated)
	if ev.DocumentID != doc.ID {
		t.Errorf("event document = %s, want %s", ev.DocumentID, doc.ID)
	}
}

func TestDocumentStoreCreateRequiresOwner(t *testing.T) {
	store, _, _ := newTestStore(t)
	_, err := store.Create(context.Background(), "", &models.Document{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestDocumentStoreUpdateValidatesBlocks(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	doc, err := store.Create(ctx, "owner-1", &models.Document{Content: "x"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	doc.ProcessedBlocks = []models.ContentBlock{{Type: "html", Content: "<p>"}}
	_, err = store.Update(ctx, doc)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}

	doc.ProcessedBlocks = []models.ContentBlock{{Type: models.BlockMermaid, Content: "graph TD;A-->B"}}
	doc.Title = strings.Repeat("t", 300)
	_, err = store.Update(ctx, doc)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("long title error = %v, want ErrValidation", err)
	}
}

func TestDocumentStoreUpdateKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	doc, err := store.Create(ctx, "owner-1", &models.Document{Content: "a"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	edit := doc.Clone()
	edit.Content = "b"
	edit.OwnerID = "someone-else"
	updated, err := store.Update(ctx, edit)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.OwnerID != "owner-1" || !updated.CreatedAt.Equal(doc.CreatedAt) {
		t.Errorf("identity changed: %+v", updated)
	}
	if !updated.UpdatedAt.After(doc.UpdatedAt) {
		t.Error("UpdatedAt must advance")
	}
}

func TestDocumentStoreListOrder(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	first, _ := store.Create(ctx, "owner-1", &models.Document{Content: "1"})
	second, _ := store.Create(ctx, "owner-1", &models.Document{Content: "2"})
	if _, err := store.Create(ctx, "owner-2", &models.Document{Content: "other"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	first.Content = "1 edited"
	if _, err := store.Update(ctx, first); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	docs, err := store.List(ctx, "owner-1")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != first.ID || docs[1].ID != second.ID {
		t.Errorf("List() order = %v", docs)
	}

	latest, err := store.Latest(ctx, "owner-1")
	if err != nil || latest.ID != first.ID {
		t.Errorf("Latest() = %v, %v", latest, err)
	}
}

func TestDocumentStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	doc, _ := store.Create(ctx, "owner-1", &models.Document{})

	sub, _ := store.SubscribeToChanges(ctx, "owner-1")
	defer sub.Close()

	ok, err := store.Delete(ctx, doc.ID)
	if err != nil || !ok {
		t.Fatalf("Delete() = %v, %v", ok, err)
	}
	expectEvent(t, sub, models.ChangeDeleted)

	ok, err = store.Delete(ctx, doc.ID)
	if err != nil || ok {
		t.Errorf("second Delete() = %v, %v; want false, nil", ok, err)
	}
}

func TestDocumentStoreDeleteAndEnsure(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	a, _ := store.Create(ctx, "owner-1", &models.Document{Content: "a"})
	b, _ := store.Create(ctx, "owner-1", &models.Document{Content: "b"})

	replacement, err := store.DeleteAndEnsure(ctx, "owner-1", a.ID)
	if err != nil {
		t.Fatalf("DeleteAndEnsure() error: %v", err)
	}
	if replacement != nil {
		t.Errorf("replacement created while %s remains", b.ID)
	}

	replacement, err = store.DeleteAndEnsure(ctx, "owner-1", b.ID)
	if err != nil {
		t.Fatalf("DeleteAndEnsure() error: %v", err)
	}
	if replacement == nil || replacement.Title != "Untitled" || replacement.Content != "" {
		t.Fatalf("replacement = %+v, want empty Untitled document", replacement)
	}

	docs, _ := store.List(ctx, "owner-1")
	if len(docs) != 1 || docs[0].ID != replacement.ID {
		t.Errorf("List() after delete = %v", docs)
	}
}

func TestDocumentStoreDeleteAndEnsureForeignDocument(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	doc, _ := store.Create(ctx, "owner-1", &models.Document{})

	_, err := store.DeleteAndEnsure(ctx, "owner-2", doc.ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, err := store.Get(ctx, doc.ID); err != nil {
		t.Errorf("document must survive a foreign delete: %v", err)
	}
}

func TestDocumentStorePropagatesRepositoryErrors(t *testing.T) {
	ctx := context.Background()
	store, repo, _ := newTestStore(t)

	repo.failNext = errors.New("connection reset")
	if _, err := store.List(ctx, "owner-1"); err == nil {
		t.Error("List() must surface repository errors")
	}
}
