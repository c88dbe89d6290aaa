// Package seed fills a development account with sample notes.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"braindump/internal/domain/models"
	"braindump/internal/domain/services"
)

// Sample is one seeded note.
type Sample struct {
	Title   string
	Content string
}

// SampleDocuments returns the seeded notes, oldest first. The last one is
// long enough to be transformed as soon as it is opened and edited.
func SampleDocuments() []Sample {
	return []Sample{
		{
			Title:   "Groceries",
			Content: "eggs\noat milk\ncoffee beans",
		},
		{
			Title: "Launch checklist",
			Content: "- finish onboarding copy\n- record demo video\n- pricing page: free tier vs pro?\n" +
				"- email beta users\n- after launch: collect feedback, fix top 3 issues",
		},
		{
			Title: models.DefaultDocumentTitle,
			Content: "podcast idea: interviews with people who changed careers after 40. " +
				"segments: the moment they decided, what they had to unlearn, money. " +
				"guests: aunt maria (nurse -> software), the baker from the market. " +
				"flow: pitch -> pilot episode -> find a co-host -> weekly schedule. " +
				"open questions: video or audio only? sponsorships?",
		},
	}
}

// Seeder creates sample documents through the document store, so change
// events fire as for any other write.
type Seeder struct {
	store  services.DocumentStore
	logger *slog.Logger
}

// NewSeeder creates a seeder
func NewSeeder(store services.DocumentStore, logger *slog.Logger) *Seeder {
	return &Seeder{store: store, logger: logger}
}

// Seed creates the sample documents for ownerID. With clear set, the
// owner's existing documents are deleted first.
func (s *Seeder) Seed(ctx context.Context, ownerID string, clear bool) ([]*models.Document, error) {
	if clear {
		n, err := s.Clear(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		s.logger.Info("cleared documents", "owner_id", ownerID, "count", n)
	}

	created := make([]*models.Document, 0, len(SampleDocuments()))
	for _, sample := range SampleDocuments() {
		doc := models.NewDocument(ownerID)
		doc.Title = sample.Title
		doc.Content = sample.Content

		stored, err := s.store.Create(ctx, ownerID, doc)
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", sample.Title, err)
		}
		s.logger.Info("seeded document", "id", stored.ID, "title", stored.Title)
		created = append(created, stored)
	}
	return created, nil
}

// Clear deletes every document of ownerID and reports how many were removed.
func (s *Seeder) Clear(ctx context.Context, ownerID string) (int, error) {
	docs, err := s.store.List(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}
	removed := 0
	for _, d := range docs {
		ok, err := s.store.Delete(ctx, d.ID)
		if err != nil {
			return removed, fmt.Errorf("delete %s: %w", d.ID, err)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
