package session

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"braindump/internal/contenthash"
	"braindump/internal/domain"
	"braindump/internal/domain/models"
)

// Everything in this file runs on the loop goroutine.

type createResult struct {
	doc *models.Document
	err error
}

func (c *Controller) fail(msg string) {
	c.failed = true
	c.errMsg = msg
}

func (c *Controller) bootstrap(docs []models.Document) {
	c.docs = make([]*models.Document, 0, len(docs))
	for i := range docs {
		c.docs = append(c.docs, docs[i].Clone())
	}
	sortDocs(c.docs)
	c.loaded = true
	c.activate(c.docs[0])
	c.logger.Info("session started", "documents", len(c.docs), "active_id", c.active)

	if c.changedWhileLoading {
		c.changedWhileLoading = false
		c.requestRefetch()
	}
}

func (c *Controller) find(id string) *models.Document {
	for _, d := range c.docs {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (c *Controller) gone(id string) bool {
	return c.deleted[id] || c.pendingDeletes[id]
}

// activate opens doc and seeds its fingerprint when it has never had one,
// so unchanged content is not sent for transformation.
func (c *Controller) activate(doc *models.Document) {
	c.active = doc.ID
	c.buffer = doc.Content
	if doc.Content != "" && c.effectiveHash(doc.ID) == "" {
		hash := contenthash.Hash(doc.Content)
		c.enqueue(doc.ID, pendingWrite{hash: &hash})
	}
}

// effectiveContent is the content the store will hold once queued writes land.
func (c *Controller) effectiveContent(id string) string {
	if w := c.writes[id]; w != nil {
		if w.next != nil && w.next.content != nil {
			return *w.next.content
		}
		if w.inFlightContent != nil {
			return *w.inFlightContent
		}
	}
	if d := c.find(id); d != nil {
		return d.Content
	}
	return ""
}

// effectiveHash is the fingerprint the document has, or is about to have.
func (c *Controller) effectiveHash(id string) string {
	if t, ok := c.transforming[id]; ok {
		return t.hash
	}
	if w := c.writes[id]; w != nil {
		if w.next != nil && w.next.hash != nil {
			return *w.next.hash
		}
		if w.inFlightHash != nil {
			return *w.inFlightHash
		}
	}
	if d := c.find(id); d != nil && d.ContentHash != nil {
		return *d.ContentHash
	}
	return ""
}

func (c *Controller) dirty() bool {
	return c.active != "" && c.buffer != c.effectiveContent(c.active)
}

func (c *Controller) edit(content string) error {
	if c.failed {
		return ErrSessionFailed
	}
	if c.active == "" || c.deletingActive {
		return ErrNoActiveDocument
	}
	if content == c.buffer {
		return nil
	}

	delta := utf8.RuneCountInString(content) - utf8.RuneCountInString(c.buffer)
	if delta < 0 {
		delta = -delta
	}

	c.buffer = content
	c.errMsg = ""
	c.saveTimer.Trigger()

	if delta >= c.cfg.SignificantChangeDelta {
		c.transformArmedFor = c.active
		c.transformTimer.Trigger()
	}
	return nil
}

func (c *Controller) selectDocument(id string) error {
	if c.failed {
		return ErrSessionFailed
	}
	if id == c.active {
		return nil
	}
	doc := c.find(id)
	if doc == nil || c.gone(id) {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if c.deletingActive {
		return ErrNoActiveDocument
	}

	c.flushBuffer()
	c.activate(doc)
	return nil
}

func (c *Controller) onSaveTimer() {
	c.flushBuffer()
}

// flushBuffer queues the buffer as a content write for the active document.
func (c *Controller) flushBuffer() {
	id := c.active
	if id == "" || c.gone(id) || c.find(id) == nil {
		return
	}
	if c.buffer == c.effectiveContent(id) {
		return
	}
	content := c.buffer
	c.enqueue(id, pendingWrite{content: &content})
}

func (c *Controller) enqueue(id string, patch pendingWrite) {
	w := c.writes[id]
	if w == nil {
		w = &docWrites{}
		c.writes[id] = w
	}
	if w.next == nil {
		w.next = &pendingWrite{}
	}
	w.next.merge(patch)
	if !w.inFlight {
		c.dispatch(id)
	}
}

// dispatch sends the merged pending write for id, based on the latest
// stored version of the document.
func (c *Controller) dispatch(id string) {
	w := c.writes[id]
	if w == nil || w.inFlight || w.next == nil {
		return
	}
	if c.pendingDeletes[id] {
		// Held until the delete settles; a failed delete resumes it.
		return
	}
	base := c.find(id)
	if base == nil || c.deleted[id] {
		delete(c.writes, id)
		return
	}

	p := w.next
	w.next = nil
	w.inFlight = true
	w.inFlightContent = p.content
	w.inFlightHash = p.hash

	doc := base.Clone()
	if p.content != nil {
		doc.Content = *p.content
	}
	if p.processed != nil && p.hash != nil {
		doc.ApplyProcessed(p.processed, *p.hash)
	} else if p.hash != nil {
		doc.ContentHash = p.hash
	}

	go func() {
		ctx, cancel := c.storeContext()
		updated, err := c.store.Update(ctx, doc)
		cancel()
		c.post(func() { c.onWriteDone(id, p, updated, err) })
	}()
}

func (c *Controller) onWriteDone(id string, sent *pendingWrite, updated *models.Document, err error) {
	w := c.writes[id]
	if w != nil {
		w.inFlight = false
		w.inFlightContent = nil
		w.inFlightHash = nil
	}

	switch {
	case c.deleted[id]:
		c.logger.Debug("dropping write for deleted document", "id", id)
		delete(c.writes, id)
		return
	case err != nil && errors.Is(err, domain.ErrNotFound):
		c.logger.Debug("document removed elsewhere, refetching", "id", id)
		delete(c.writes, id)
		c.requestRefetch()
		return
	case err != nil:
		c.logger.Error("failed to save document", "id", id, "content", sent.content != nil, "error", err)
		if sent.content != nil {
			c.errMsg = msgSaveFailed
		}
	default:
		c.replaceDoc(updated)
	}

	if w != nil && w.next != nil {
		c.dispatch(id)
	} else {
		delete(c.writes, id)
	}
}

func (c *Controller) replaceDoc(doc *models.Document) {
	for i, d := range c.docs {
		if d.ID == doc.ID {
			c.docs[i] = doc.Clone()
			sortDocs(c.docs)
			return
		}
	}
}

func (c *Controller) onTransformTimer() {
	id := c.transformArmedFor
	c.transformArmedFor = ""
	if id == "" || id != c.active || c.deletingActive {
		c.logger.Debug("transform target no longer active", "id", id)
		return
	}

	raw := c.buffer
	if utf8.RuneCountInString(raw) < c.cfg.MinTransformLength {
		return
	}
	hash := contenthash.Hash(raw)
	if hash == c.effectiveHash(id) {
		return
	}

	c.transformSeq++
	ticket := transformTicket{hash: hash, seq: c.transformSeq}
	c.transforming[id] = ticket

	c.logger.Debug("transform started", "id", id, "hash", hash)
	go func() {
		ctx, cancel := c.transformContext()
		result := c.transformer.Transform(ctx, raw)
		cancel()
		c.post(func() { c.onTransformDone(id, ticket, result) })
	}()
}

// onTransformDone persists a result to the document it was produced for.
// It never touches the buffer, so a result for a document the user has
// since left cannot show up in the open one.
func (c *Controller) onTransformDone(id string, ticket transformTicket, result models.ProcessedDocument) {
	current, ok := c.transforming[id]
	if !ok || current.seq != ticket.seq {
		c.logger.Debug("dropping superseded transform", "id", id)
		return
	}
	delete(c.transforming, id)

	if c.gone(id) || c.find(id) == nil {
		c.logger.Debug("dropping transform for deleted document", "id", id)
		return
	}

	hash := ticket.hash
	c.enqueue(id, pendingWrite{processed: &result, hash: &hash})
}

func (c *Controller) startCreate(reply chan<- createResult) error {
	if c.failed {
		return ErrSessionFailed
	}

	go func() {
		ctx, cancel := c.storeContext()
		doc, err := c.store.Create(ctx, c.ownerID, models.NewDocument(c.ownerID))
		cancel()
		c.post(func() { c.onCreated(doc, err, reply) })
	}()
	return nil
}

func (c *Controller) onCreated(doc *models.Document, err error, reply chan<- createResult) {
	if err != nil {
		c.logger.Error("failed to create document", "error", err)
		c.errMsg = msgCreateFailed
		if reply != nil {
			reply <- createResult{err: err}
		}
		return
	}

	c.refetchCreated[doc.ID] = true
	if existing := c.find(doc.ID); existing == nil {
		c.docs = append([]*models.Document{doc.Clone()}, c.docs...)
	}

	if c.deletingActive {
		// Replacement for a deleted last document.
		c.deletingActive = false
	} else {
		c.flushBuffer()
	}
	c.activate(c.find(doc.ID))

	if reply != nil {
		reply <- createResult{doc: doc}
	}
}

func (c *Controller) startDelete(id string, reply chan<- error) error {
	if c.failed {
		return ErrSessionFailed
	}
	if c.find(id) == nil || c.deleted[id] {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if c.pendingDeletes[id] {
		return nil
	}

	c.pendingDeletes[id] = true
	if id == c.active {
		c.deletingActive = true
		c.saveTimer.Cancel()
		c.transformArmedFor = ""
	}

	go func() {
		ctx, cancel := c.storeContext()
		created, err := c.store.DeleteAndEnsure(ctx, c.ownerID, id)
		cancel()
		c.post(func() { c.onDeleted(id, created, err, reply) })
	}()
	return nil
}

func (c *Controller) onDeleted(id string, created *models.Document, err error, reply chan<- error) {
	delete(c.pendingDeletes, id)

	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.logger.Error("failed to delete document", "id", id, "error", err)
		c.errMsg = msgDeleteFailed
		if id == c.active {
			c.deletingActive = false
			if c.dirty() {
				c.saveTimer.Trigger()
			}
		}
		c.dispatch(id)
		// The list may have changed while the delete was pending.
		c.requestRefetch()
		reply <- err
		return
	}

	c.deleted[id] = true
	c.removeDoc(id)
	delete(c.writes, id)
	delete(c.transforming, id)

	if created != nil && c.find(created.ID) == nil {
		c.docs = append([]*models.Document{created.Clone()}, c.docs...)
	}

	if id == c.active {
		c.reassignActive()
	}
	c.logger.Info("document deleted", "id", id, "replacement_created", created != nil)
	reply <- nil
}

func (c *Controller) removeDoc(id string) {
	for i, d := range c.docs {
		if d.ID == id {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return
		}
	}
}

// reassignActive opens the first remaining document, or creates one when
// the list is empty. Edits stay blocked until a document is open.
func (c *Controller) reassignActive() {
	c.active = ""
	c.buffer = ""
	if len(c.docs) > 0 {
		c.deletingActive = false
		c.activate(c.docs[0])
		return
	}
	c.deletingActive = true
	_ = c.startCreate(nil)
}

func (c *Controller) onRemoteChange(ev models.ChangeEvent) {
	if c.failed {
		return
	}
	if !c.loaded {
		// The initial list may predate this change.
		c.changedWhileLoading = true
		return
	}
	c.logger.Debug("remote change", "id", ev.DocumentID, "op", ev.Op)
	c.requestRefetch()
}

// requestRefetch lists documents again; requests made while one is running
// collapse into a single follow-up.
func (c *Controller) requestRefetch() {
	if c.refetching {
		c.refetchAgain = true
		return
	}
	c.refetching = true
	c.refetchCreated = make(map[string]bool)

	go func() {
		ctx, cancel := c.storeContext()
		docs, err := c.store.List(ctx, c.ownerID)
		cancel()
		c.post(func() { c.onRefetched(docs, err) })
	}()
}

func (c *Controller) onRefetched(remote []models.Document, err error) {
	c.refetching = false
	if err != nil {
		c.logger.Warn("refetch failed", "error", err)
	} else {
		c.applyRemote(remote)
	}

	if c.refetchAgain {
		c.refetchAgain = false
		c.requestRefetch()
	}
}

// applyRemote replaces the list with the fetched one, never reviving a
// deleted document and keeping whichever copy of a document is newer.
func (c *Controller) applyRemote(remote []models.Document) {
	wasDirty := c.dirty()

	next := make([]*models.Document, 0, len(remote))
	seen := make(map[string]bool, len(remote))
	for i := range remote {
		r := &remote[i]
		if c.deleted[r.ID] {
			continue
		}
		seen[r.ID] = true
		if local := c.find(r.ID); local != nil && local.UpdatedAt.After(r.UpdatedAt) {
			next = append(next, local)
			continue
		}
		next = append(next, r.Clone())
	}
	// Documents created while the list was in flight are not in it yet, and
	// a document is only dropped once its delete has succeeded.
	for _, d := range c.docs {
		if seen[d.ID] || c.deleted[d.ID] {
			continue
		}
		if c.refetchCreated[d.ID] || c.pendingDeletes[d.ID] {
			next = append(next, d)
		}
	}
	sortDocs(next)
	c.docs = next

	if c.deletingActive {
		return
	}

	active := c.find(c.active)
	if active == nil {
		c.logger.Info("active document removed elsewhere", "id", c.active)
		c.reassignActive()
		return
	}
	if !wasDirty && c.writes[c.active] == nil {
		c.buffer = active.Content
	}
}

func (c *Controller) view() View {
	v := View{
		Documents: make([]DocumentSummary, 0, len(c.docs)),
		ActiveID:  c.active,
		Buffer:    c.buffer,
		Error:     c.errMsg,
	}
	for _, d := range c.docs {
		if c.gone(d.ID) {
			continue
		}
		v.Documents = append(v.Documents, DocumentSummary{
			ID:        d.ID,
			Title:     d.Title,
			Label:     d.Label(),
			UpdatedAt: d.UpdatedAt,
		})
	}

	if d := c.find(c.active); d != nil {
		v.Title = d.Title
		v.ProcessedContent = d.ProcessedContent
		v.ProcessedBlocks = d.ProcessedBlocks
	}
	_, v.Processing = c.transforming[c.active]

	switch {
	case c.errMsg != "":
		v.Status = StatusError
	case c.writes[c.active] != nil && c.writes[c.active].inFlightContent != nil:
		v.Status = StatusSaving
	case c.dirty():
		v.Status = StatusDirtyUnsaved
	default:
		v.Status = StatusClean
	}
	return v
}

func sortDocs(docs []*models.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})
}
