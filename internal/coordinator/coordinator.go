// Package coordinator performs every document operation across the primary backend, the
// secondary mirror and the session cache.
//
// Only CreateDocument and DownloadDocument fail because of a backend. Update, trash and delete
// always apply locally and report whether the primary acknowledged the change; mirror writes are
// queued and never awaited.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"docvault/internal/cache"
	"docvault/internal/download"
	"docvault/internal/gateway"
	"docvault/internal/logging"
	"docvault/internal/metrics"
	"docvault/internal/mirror"
	"docvault/internal/model"
	"docvault/internal/primary"
	"docvault/internal/schema"
)

var (
	// ErrNotAuthenticated is returned by every mutating operation when no identity resolves.
	ErrNotAuthenticated = gateway.ErrNotAuthenticated
	// ErrDownloadFailed wraps every DownloadDocument failure.
	ErrDownloadFailed = errors.New("download failed")
)

// Upload is the file part of a new document.
type Upload = primary.File

// FallbackReader lists documents when the primary backend cannot.
type FallbackReader interface {
	ListFallback(ctx context.Context, identity string) []model.Document
}

type noFallback struct{}

func (noFallback) ListFallback(context.Context, string) []model.Document { return []model.Document{} }

// UpdateResult carries the primary's view of an updated document. Document is nil when the
// primary did not acknowledge the update; the local change is applied either way.
type UpdateResult struct {
	Document     *model.Document
	Acknowledged bool
}

// Ack reports whether the primary backend accepted a change that was already applied locally.
type Ack struct {
	BackendAcknowledged bool
}

// Coordinator is session scoped: it owns its cache and is not shared between identities.
type Coordinator struct {
	gw       *gateway.Gateway
	primary  primary.Client
	fallback FallbackReader
	mirror   mirror.Queue
	cache    *cache.Local
	log      logging.Logger
	metrics  *metrics.Recorder

	platform string
	grace    time.Duration
	tempDir  string

	clockMu sync.Mutex
	now     func() time.Time
	last    time.Time
}

type Option func(*Coordinator)

func WithFallback(f FallbackReader) Option {
	return func(c *Coordinator) {
		if f != nil {
			c.fallback = f
		}
	}
}

func WithMirror(q mirror.Queue) Option {
	return func(c *Coordinator) {
		if q != nil {
			c.mirror = q
		}
	}
}

func WithCache(lc *cache.Local) Option {
	return func(c *Coordinator) {
		if lc != nil {
			c.cache = lc
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Coordinator) { c.metrics = r }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDownload sets the platform used to pick a disposition, how long downloaded files live, and
// where they are written.
func WithDownload(platform string, grace time.Duration, dir string) Option {
	return func(c *Coordinator) {
		c.platform = platform
		c.grace = grace
		c.tempDir = dir
	}
}

func New(gw *gateway.Gateway, p primary.Client, opts ...Option) *Coordinator {
	c := &Coordinator{
		gw:       gw,
		primary:  p,
		fallback: noFallback{},
		mirror:   mirror.Discard{},
		cache:    cache.New(),
		log:      logging.Nop{},
		platform: "desktop",
		grace:    download.DefaultGrace,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache is the view read by renderers.
func (c *Coordinator) Cache() *cache.Local { return c.cache }

// ListDocuments returns the primary's list, or the secondary's when the primary fails, or an
// empty list. It never fails and never writes to the cache.
func (c *Coordinator) ListDocuments(ctx context.Context) []model.Document {
	h, err := c.gw.ResolveHeaders(ctx)
	if err != nil {
		c.log.Warn(ctx, "list skipped", "error", err)
		c.metrics.ListSource(metrics.SourceEmpty)
		return []model.Document{}
	}
	budget := c.gw.Budgets().List

	docs, err := gateway.WithTimeout(ctx, "list", budget, func(ctx context.Context) ([]model.Document, error) {
		return c.primary.List(ctx, h)
	})
	c.metrics.SyncOperation("list", outcome(err))
	if err == nil {
		c.metrics.ListSource(metrics.SourcePrimary)
		if docs == nil {
			docs = []model.Document{}
		}
		return docs
	}
	c.log.Warn(ctx, "primary list failed, falling back to secondary", "error", err)

	docs, err = gateway.WithTimeout(ctx, "list fallback", budget, func(ctx context.Context) ([]model.Document, error) {
		return c.fallback.ListFallback(ctx, h.Identity), nil
	})
	if err != nil || len(docs) == 0 {
		if err != nil {
			c.log.Warn(ctx, "secondary list failed", "error", err)
		}
		c.metrics.ListSource(metrics.SourceEmpty)
		return []model.Document{}
	}
	c.metrics.ListSource(metrics.SourceSecondary)
	return docs
}

// CreateDocument uploads file to the primary and, once it answers, caches and mirrors the result.
// A primary failure is returned and leaves no trace locally.
func (c *Coordinator) CreateDocument(ctx context.Context, file Upload, meta model.Metadata) (model.Document, error) {
	h, err := c.gw.ResolveHeaders(ctx)
	if err != nil {
		return model.Document{}, err
	}

	doc, err := gateway.WithTimeout(ctx, "create", c.gw.Budgets().Create, func(ctx context.Context) (model.Document, error) {
		return c.primary.Create(ctx, h, file, meta)
	})
	c.metrics.SyncOperation("create", outcome(err))
	if err != nil {
		return model.Document{}, fmt.Errorf("create document: %w", err)
	}
	if doc.ID == "" {
		return model.Document{}, errors.New("create document: primary returned no id")
	}

	doc = c.complete(doc, file, meta, h.Identity)
	if err := c.cache.Append(doc); err != nil {
		c.cache.Patch(doc.ID, func(d *model.Document) { *d = doc.Clone() })
	}
	c.submit(ctx, mirror.Task{Op: mirror.OpCreate, ID: doc.ID, Fields: schema.ToRecord(doc)})
	return doc, nil
}

// complete fills what the primary's answer left out from the request that produced it.
func (c *Coordinator) complete(doc model.Document, file Upload, meta model.Metadata, who string) model.Document {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&doc.Title, meta.Title)
	fill(&doc.FileName, file.Name)
	fill(&doc.Title, doc.FileName)
	fill(&doc.MimeType, file.ContentType)
	fill(&doc.Category, meta.Category)
	fill(&doc.SubCategory, meta.SubCategory)
	fill(&doc.Year, meta.Year)
	fill(&doc.Org, meta.Org)
	fill(&doc.Owner, who)
	if len(doc.Recipients) == 0 {
		doc.Recipients = append([]string{}, meta.Recipients...)
	}
	if doc.SharedWith == nil {
		doc.SharedWith = []string{}
	}
	stamp := c.tick(doc.LastModified)
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = stamp
	}
	doc.LastModified = stamp
	fill(&doc.LastModifiedBy, who)
	return doc
}

// UpdateDocument sends patch to the primary, queues the mirror write and applies the patch to the
// cache, in that order, whatever the primary answered. The only error is ErrNotAuthenticated.
func (c *Coordinator) UpdateDocument(ctx context.Context, id string, patch model.Patch) (UpdateResult, error) {
	h, err := c.gw.ResolveHeaders(ctx)
	if err != nil {
		return UpdateResult{}, err
	}
	log := c.log.With("op", "update", "id", id)

	resp, err := gateway.WithTimeout(ctx, "update", c.gw.Budgets().Update, func(ctx context.Context) (model.Document, error) {
		return c.primary.Update(ctx, h, id, patch)
	})
	c.metrics.SyncOperation("update", outcome(err))
	if err != nil {
		log.Warn(ctx, "primary update failed, applying locally", "error", err)
	}

	stamp := c.apply(id, h.Identity, func(d *model.Document, _ time.Time) { patch.Apply(d) })
	fields := schema.PatchRecord(patch)
	fields[schema.SnakeKey("lastModified")] = stamp
	fields[schema.SnakeKey("lastModifiedBy")] = h.Identity
	c.submit(ctx, mirror.Task{Op: mirror.OpUpdate, ID: id, Fields: fields})

	if err != nil {
		return UpdateResult{}, nil
	}
	return UpdateResult{Document: &resp, Acknowledged: true}, nil
}

// SetTrashed moves a document to or from the trash. The cache always reflects the request.
func (c *Coordinator) SetTrashed(ctx context.Context, id string, trashed bool) (Ack, error) {
	h, err := c.gw.ResolveHeaders(ctx)
	if err != nil {
		return Ack{}, err
	}
	log := c.log.With("op", "trash", "id", id)

	_, err = gateway.WithTimeout(ctx, "trash", c.gw.Budgets().Trash, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.primary.SetTrashed(ctx, h, id, trashed)
	})
	c.metrics.SyncOperation("trash", outcome(err))
	if err != nil {
		log.Warn(ctx, "primary trash failed, applying locally", "trashed", trashed, "error", err)
	}

	var (
		deletedAt any
		deletedBy string
	)
	stamp := c.apply(id, h.Identity, func(d *model.Document, stamp time.Time) {
		switch {
		case !trashed:
			d.DeletedAt, d.DeletedBy = nil, ""
		case !d.Trashed || d.DeletedAt == nil:
			at := stamp
			d.DeletedAt, d.DeletedBy = &at, h.Identity
		}
		d.Trashed = trashed
		if d.DeletedAt != nil {
			deletedAt, deletedBy = *d.DeletedAt, d.DeletedBy
		}
	})
	if trashed && deletedAt == nil {
		deletedAt, deletedBy = stamp, h.Identity
	}

	fields := schema.Record{
		schema.SnakeKey("trashed"):        trashed,
		schema.SnakeKey("deletedAt"):      deletedAt,
		schema.SnakeKey("deletedBy"):      deletedBy,
		schema.SnakeKey("lastModified"):   stamp,
		schema.SnakeKey("lastModifiedBy"): h.Identity,
	}
	c.submit(ctx, mirror.Task{Op: mirror.OpTrash, ID: id, Fields: fields})
	return Ack{BackendAcknowledged: err == nil}, nil
}

// DeleteForever removes a document everywhere. The cache entry is removed whatever the backends
// answer; a primary 404 counts as acknowledged.
func (c *Coordinator) DeleteForever(ctx context.Context, id string) (Ack, error) {
	h, err := c.gw.ResolveHeaders(ctx)
	if err != nil {
		return Ack{}, err
	}
	log := c.log.With("op", "delete", "id", id)

	_, err = gateway.WithTimeout(ctx, "delete", c.gw.Budgets().Delete, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.primary.DeleteForever(ctx, h, id)
	})
	if primary.IsNotFound(err) {
		log.Info(ctx, "document already absent on primary")
		err = nil
	}
	c.metrics.SyncOperation("delete", outcome(err))
	if err != nil {
		log.Warn(ctx, "primary delete failed, removing locally", "error", err)
	}

	c.cache.Remove(id)
	c.submit(ctx, mirror.Task{Op: mirror.OpDelete, ID: id})
	return Ack{BackendAcknowledged: err == nil}, nil
}

// DownloadDocument fetches the bytes from the primary and exposes them as a temporary file that is
// released after the grace period. Failures are returned wrapped in ErrDownloadFailed and leave
// the cache untouched.
func (c *Coordinator) DownloadDocument(ctx context.Context, id, fileName string) (*download.Handle, error) {
	h, err := c.gw.ResolveHeaders(ctx)
	if err != nil {
		return nil, err
	}

	content, err := gateway.WithTimeout(ctx, "download", c.gw.Budgets().Download, func(ctx context.Context) (primary.Content, error) {
		return c.primary.Download(ctx, h, id)
	})
	c.metrics.SyncOperation("download", outcome(err))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDownloadFailed, id, err)
	}

	if fileName == "" {
		if doc, ok := c.cache.Get(id); ok {
			fileName = doc.FileName
		}
	}
	handle, err := download.NewHandle(content.Data, download.Options{
		FileName:    fileName,
		ContentType: content.ContentType,
		Platform:    c.platform,
		Grace:       c.grace,
		Dir:         c.tempDir,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDownloadFailed, id, err)
	}
	return handle, nil
}

// apply runs fn on the cached entry and stamps it as modified by who. The stamp is returned even
// when id is not cached so the mirror write still carries it.
func (c *Coordinator) apply(id, who string, fn func(d *model.Document, stamp time.Time)) time.Time {
	var stamp time.Time
	found := c.cache.Patch(id, func(d *model.Document) {
		stamp = c.tick(d.LastModified)
		fn(d, stamp)
		d.LastModified = stamp
		d.LastModifiedBy = who
	})
	if !found {
		stamp = c.tick(time.Time{})
	}
	return stamp
}

// tick returns a timestamp strictly after both prev and every timestamp issued before.
func (c *Coordinator) tick(prev time.Time) time.Time {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()
	t := c.now().UTC().Truncate(time.Millisecond)
	for _, floor := range []time.Time{prev, c.last} {
		if !floor.IsZero() && !t.After(floor) {
			t = floor.Add(time.Millisecond)
		}
	}
	c.last = t
	return t
}

func (c *Coordinator) submit(ctx context.Context, t mirror.Task) {
	if !c.mirror.Submit(t) {
		c.log.Warn(ctx, "mirror write not queued", "op", t.Op, "id", t.ID)
	}
}

func outcome(err error) string {
	var te *gateway.TimeoutError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &te):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeFailed
	}
}
