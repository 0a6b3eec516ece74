package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	bolterrors "go.etcd.io/bbolt/errors"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
)

const (
	// PlantTokenizerName is the n-gram tokenizer defined in every plant index.
	PlantTokenizerName = "plant_ngram"

	// PlantAnalyzerName is the n-gram + lowercase analyzer for free-text fields.
	PlantAnalyzerName = "plant_analyzer"

	currentSuffix = ".current"

	// DefaultLockTimeout bounds the wait for a generation another process is
	// still writing.
	DefaultLockTimeout = 2 * time.Second
)

// BleveIndex is a SearchIndex backed by Bleve. Searches go through an
// index alias so a shadow rebuild can be swapped in atomically.
//
// On disk, root holds one directory per generation (<name>-<gen>) and a
// <name>.current file naming the generation being served. An empty root
// keeps everything in memory.
//
// Only the handle building a generation opens it writable, and only until
// the build completes. Served generations are opened read-only, so any
// number of processes can search while one refresh writes a new one.
type BleveIndex struct {
	mu          sync.RWMutex
	root        string
	name        string
	gen         string
	shadow      bool
	sealed      bool
	lockTimeout time.Duration
	settings    *Settings
	idx         bleve.Index
	batch       *bleve.Batch
	alias       bleve.IndexAlias
	closed      bool
}

// OpenOption configures OpenBleveIndex.
type OpenOption func(*BleveIndex)

// WithLockTimeout sets how long opening waits for a generation that
// another process holds open for writing.
func WithLockTimeout(d time.Duration) OpenOption {
	return func(b *BleveIndex) {
		if d > 0 {
			b.lockTimeout = d
		}
	}
}

// Verify interface implementation at compile time
var _ ShadowIndex = (*BleveIndex)(nil)

// NewMemBleveIndex creates an empty in-memory index, for tests and dry runs.
func NewMemBleveIndex(name string) *BleveIndex {
	return &BleveIndex{name: name, alias: bleve.NewIndexAlias()}
}

// OpenBleveIndex opens the served generation of index name under root
// read-only, if there is one. A missing index is not an error: Exists
// reports false and Create/SetMapping build it. A generation that another
// process is still writing fails with ErrCodeIndexLocked once the lock
// timeout passes.
func OpenBleveIndex(root, name string, opts ...OpenOption) (*BleveIndex, error) {
	if root == "" {
		return NewMemBleveIndex(name), nil
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "create index directory "+root, err)
	}

	b := &BleveIndex{root: root, name: name, lockTimeout: DefaultLockTimeout, alias: bleve.NewIndexAlias()}
	for _, opt := range opts {
		opt(b)
	}

	gen, err := b.readCurrent()
	if err != nil {
		return nil, err
	}
	if gen == "" {
		return b, nil
	}

	idx, err := b.openSealed(gen)
	if amerrors.HasCode(err, amerrors.ErrCodeIndexLocked) {
		return nil, err
	}
	if err != nil {
		// A dangling pointer or corrupt generation reads as no index; the
		// next refresh deletes and rebuilds it.
		slog.Warn("plant_index_open_failed",
			slog.String("path", filepath.Join(root, gen)),
			slog.String("error", err.Error()))
		b.gen = gen
		return b, nil
	}

	b.gen = gen
	b.idx = idx
	b.batch = idx.NewBatch()
	b.sealed = true
	b.alias.Add(idx)
	return b, nil
}

// openSealed opens generation gen read-only. Bolt takes a shared lock for
// that, which waits while a writer holds the generation.
func (b *BleveIndex) openSealed(gen string) (bleve.Index, error) {
	timeout := b.lockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	idx, err := bleve.OpenUsing(filepath.Join(b.root, gen), map[string]interface{}{
		"read_only":    true,
		"bolt_timeout": timeout.String(),
	})
	if errors.Is(err, bolterrors.ErrTimeout) {
		return nil, amerrors.IndexError(amerrors.ErrCodeIndexLocked, "index generation "+gen+" is being written", err).
			WithDetail("generation", gen).
			WithSuggestion("Retry when the running refresh completes, or set index.rebuild to shadow to keep serving during refreshes")
	}
	return idx, err
}

// Exists implements SearchIndex.
func (b *BleveIndex) Exists(ctx context.Context) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, errClosed()
	}
	return b.idx != nil || b.gen != "", nil
}

// Delete implements SearchIndex. Readers see no index until the next
// SetMapping.
func (b *BleveIndex) Delete(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed()
	}

	if b.idx != nil {
		b.alias.Remove(b.idx)
		if err := b.idx.Close(); err != nil {
			return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "close index before delete", err)
		}
	}
	if b.root != "" && b.gen != "" {
		if err := os.RemoveAll(filepath.Join(b.root, b.gen)); err != nil {
			return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "delete index "+b.gen, err)
		}
		if err := os.Remove(b.currentPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "delete index pointer", err)
		}
	}

	slog.Info("plant_index_deleted", slog.String("name", b.name), slog.String("generation", b.gen))
	b.idx = nil
	b.batch = nil
	b.gen = ""
	b.sealed = false
	b.settings = nil
	return nil
}

// Create implements SearchIndex. Bleve fixes analysis and mapping together
// when an index is created, so the index itself appears in SetMapping.
func (b *BleveIndex) Create(ctx context.Context, settings Settings) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed()
	}
	if b.idx != nil {
		return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "index "+b.name+" already exists", nil).
			WithSuggestion("Delete the index before creating it again")
	}
	if settings.MinGram < 1 || settings.MaxGram < settings.MinGram {
		return amerrors.ValidationError(
			fmt.Sprintf("invalid n-gram range %d..%d", settings.MinGram, settings.MaxGram), nil)
	}
	if settings.Analyzer == "" || settings.Tokenizer == "" {
		return amerrors.ValidationError("analyzer and tokenizer names are required", nil)
	}

	s := settings
	b.settings = &s
	return nil
}

// SetMapping implements SearchIndex.
func (b *BleveIndex) SetMapping(ctx context.Context, fields []FieldSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed()
	}
	if b.settings == nil {
		return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "set mapping before create", nil)
	}
	if b.idx != nil {
		return amerrors.IndexError(amerrors.ErrCodeMappingConflict, "mapping already set for "+b.name, nil)
	}

	im, err := buildIndexMapping(*b.settings, fields)
	if err != nil {
		return err
	}

	var idx bleve.Index
	gen := b.name + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	if b.root == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		idx, err = bleve.New(filepath.Join(b.root, gen), im)
	}
	if err != nil {
		return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "create index "+b.name, err)
	}

	if b.root != "" && !b.shadow {
		if err := b.writeCurrent(gen); err != nil {
			_ = idx.Close()
			return err
		}
	}

	b.idx = idx
	b.gen = gen
	b.batch = idx.NewBatch()
	b.sealed = false
	if !b.shadow {
		b.alias.Add(idx)
	}

	slog.Info("plant_index_created",
		slog.String("name", b.name),
		slog.String("generation", gen),
		slog.Int("fields", len(fields)),
		slog.Bool("shadow", b.shadow))
	return nil
}

// buildIndexMapping turns field specs into a Bleve mapping with the plant
// analyzer. Fields outside the specs are indexed dynamically with the same
// analyzer and stored.
func buildIndexMapping(s Settings, fields []FieldSpec) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	err := im.AddCustomTokenizer(s.Tokenizer, map[string]interface{}{
		"type":     NgramTokenizerType,
		"min_gram": s.MinGram,
		"max_gram": s.MaxGram,
	})
	if err != nil {
		return nil, amerrors.IndexError(amerrors.ErrCodeMappingConflict, "add tokenizer "+s.Tokenizer, err)
	}

	err = im.AddCustomAnalyzer(s.Analyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     s.Tokenizer,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, amerrors.IndexError(amerrors.ErrCodeMappingConflict, "add analyzer "+s.Analyzer, err)
	}
	im.DefaultAnalyzer = s.Analyzer

	doc := bleve.NewDocumentMapping()
	seen := make(map[string]FieldKind, len(fields))
	for _, f := range fields {
		if prev, ok := seen[f.Name]; ok {
			if prev != f.Kind {
				return nil, amerrors.IndexError(amerrors.ErrCodeMappingConflict,
					fmt.Sprintf("field %s mapped as both %s and %s", f.Name, prev, f.Kind), nil)
			}
			continue
		}
		seen[f.Name] = f.Kind

		var fm *mapping.FieldMapping
		switch f.Kind {
		case FieldAnalyzed:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = s.Analyzer
		case FieldKeyword:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = keyword.Name
		case FieldBoolean:
			fm = bleve.NewBooleanFieldMapping()
		case FieldNumeric:
			fm = bleve.NewNumericFieldMapping()
		default:
			return nil, amerrors.IndexError(amerrors.ErrCodeMappingConflict,
				fmt.Sprintf("field %s has unknown kind %q", f.Name, f.Kind), nil)
		}
		fm.Store = true
		doc.AddFieldMappingsAt(f.Name, fm)
	}
	im.DefaultMapping = doc

	if err := im.Validate(); err != nil {
		return nil, amerrors.IndexError(amerrors.ErrCodeMappingConflict, "invalid index mapping", err)
	}
	return im, nil
}

// AddDocument implements SearchIndex. The document is searchable after the
// next Refresh.
func (b *BleveIndex) AddDocument(ctx context.Context, id string, fields map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed()
	}
	if b.idx == nil {
		return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "add document to missing index", nil)
	}
	if b.sealed {
		return amerrors.IndexError(amerrors.ErrCodeWriteRejected, "index generation "+b.gen+" is read-only", nil).
			WithDetail("doc_id", id).
			WithSuggestion("Documents are written by a refresh, which builds a new generation")
	}
	if err := b.batch.Index(id, fields); err != nil {
		return amerrors.IndexError(amerrors.ErrCodeWriteRejected, "index document "+id, err).
			WithDetail("doc_id", id)
	}
	return nil
}

// Refresh implements SearchIndex.
func (b *BleveIndex) Refresh(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed()
	}
	return b.flushLocked()
}

func (b *BleveIndex) flushLocked() error {
	if b.idx == nil || b.batch == nil || b.batch.Size() == 0 {
		return nil
	}
	if err := b.idx.Batch(b.batch); err != nil {
		return amerrors.IndexError(amerrors.ErrCodeWriteRejected, "execute batch", err)
	}
	b.batch.Reset()
	return nil
}

// Search implements SearchIndex.
func (b *BleveIndex) Search(ctx context.Context, q query.Query, opts SearchOptions) (*SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errClosed()
	}
	if b.idx == nil || b.shadow {
		return nil, amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "index "+b.name+" does not exist", nil).
			WithSuggestion("Run 'plantsearch refresh' to build it")
	}

	size := opts.Size
	if size <= 0 {
		size = 10
	}
	req := bleve.NewSearchRequestOptions(q, size, opts.From, false)
	req.Fields = opts.Fields
	if len(req.Fields) == 0 {
		req.Fields = []string{"*"}
	}

	res, err := b.alias.SearchInContext(ctx, req)
	if err != nil {
		return nil, amerrors.IndexError(amerrors.ErrCodeSearchFailed, "search "+b.name, err)
	}

	out := &SearchResult{Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		out.Hits = append(out.Hits, Hit{ID: h.ID, Score: h.Score, Fields: h.Fields})
	}
	return out, nil
}

// DocCount implements SearchIndex. Documents still in the pending batch
// are not counted.
func (b *BleveIndex) DocCount(ctx context.Context) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, errClosed()
	}
	if b.idx == nil {
		return 0, nil
	}
	n, err := b.idx.DocCount()
	if err != nil {
		return 0, amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "count documents", err)
	}
	return n, nil
}

// Shadow implements ShadowIndex.
func (b *BleveIndex) Shadow(ctx context.Context) (SearchIndex, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errClosed()
	}
	return &BleveIndex{
		root:        b.root,
		name:        b.name,
		shadow:      true,
		lockTimeout: b.lockTimeout,
		alias:       bleve.NewIndexAlias(),
	}, nil
}

// Promote implements ShadowIndex. Pending shadow writes are flushed, the
// on-disk pointer is replaced by rename, and the alias swaps generations so
// in-process readers move over without seeing an empty index.
func (b *BleveIndex) Promote(ctx context.Context, shadow SearchIndex) error {
	s, ok := shadow.(*BleveIndex)
	if !ok || !s.shadow {
		return amerrors.InternalError("promote requires a shadow created by Shadow", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx == nil {
		return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "shadow index was never created", nil)
	}
	if err := s.sealLocked(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed()
	}

	if b.root != "" {
		if err := b.writeCurrent(s.gen); err != nil {
			return err
		}
	}

	oldIdx, oldGen := b.idx, b.gen
	var out []bleve.Index
	if oldIdx != nil {
		out = append(out, oldIdx)
	}
	b.alias.Swap([]bleve.Index{s.idx}, out)

	b.idx, b.gen, b.settings, b.sealed = s.idx, s.gen, s.settings, b.root != ""
	b.batch = s.idx.NewBatch()
	s.idx, s.batch, s.closed = nil, nil, true

	if oldIdx != nil {
		if err := oldIdx.Close(); err != nil {
			slog.Warn("plant_index_close_old_failed", slog.String("error", err.Error()))
		}
	}
	if b.root != "" && oldGen != "" && oldGen != b.gen {
		if err := os.RemoveAll(filepath.Join(b.root, oldGen)); err != nil {
			slog.Warn("plant_index_remove_old_failed",
				slog.String("generation", oldGen),
				slog.String("error", err.Error()))
		}
	}

	slog.Info("plant_index_promoted",
		slog.String("name", b.name),
		slog.String("generation", b.gen),
		slog.String("replaced", oldGen))
	return nil
}

// Seal flushes the generation this handle built and reopens it read-only,
// releasing the write lock so other processes can open it. The on-disk
// pointer is rewritten to signal processes following it. Sealing a
// read-only or in-memory index does nothing.
func (b *BleveIndex) Seal(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed()
	}
	if b.root == "" || b.idx == nil || b.sealed {
		return nil
	}
	if err := b.sealLocked(); err != nil {
		return err
	}
	if !b.shadow {
		return b.writeCurrent(b.gen)
	}
	return nil
}

// sealLocked swaps the writable handle for a read-only one. Search holds
// the read lock, so no query sees the closed handle in between.
func (b *BleveIndex) sealLocked() error {
	if err := b.flushLocked(); err != nil {
		return err
	}
	if b.root == "" || b.idx == nil || b.sealed {
		return nil
	}

	writable := b.idx
	if err := writable.Close(); err != nil {
		return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "close index "+b.gen+" for sealing", err)
	}
	ro, err := b.openSealed(b.gen)
	if err != nil {
		b.alias.Remove(writable)
		b.idx, b.batch = nil, nil
		return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "reopen index "+b.gen+" read-only", err)
	}
	if !b.shadow {
		b.alias.Swap([]bleve.Index{ro}, []bleve.Index{writable})
	}
	b.idx, b.batch, b.sealed = ro, ro.NewBatch(), true

	slog.Debug("plant_index_sealed", slog.String("name", b.name), slog.String("generation", b.gen))
	return nil
}

// Reload moves a read-only handle to the generation the on-disk pointer
// names, for processes serving an index that another process refreshes.
// It reports whether the served generation changed. A missing pointer
// keeps the current generation, and a handle that is writing never
// reloads.
func (b *BleveIndex) Reload(ctx context.Context) (bool, error) {
	b.mu.RLock()
	skip := b.closed || b.root == "" || b.shadow || (b.idx != nil && !b.sealed)
	closed, served, open := b.closed, b.gen, b.idx != nil
	b.mu.RUnlock()

	if closed {
		return false, errClosed()
	}
	if skip {
		return false, nil
	}

	gen, err := b.readCurrent()
	if err != nil {
		return false, err
	}
	if gen == "" || (gen == served && open) {
		return false, nil
	}

	// Opening waits on the writer's lock, so searches keep running on the
	// served generation meanwhile.
	idx, err := b.openSealed(gen)
	if err != nil {
		if amerrors.HasCode(err, amerrors.ErrCodeIndexLocked) {
			return false, err
		}
		return false, amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "open index generation "+gen, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.gen != served || (b.idx != nil && !b.sealed) {
		// Another reload or a local build got there first.
		_ = idx.Close()
		return false, nil
	}

	old := b.idx
	var out []bleve.Index
	if old != nil {
		out = append(out, old)
	}
	b.alias.Swap([]bleve.Index{idx}, out)
	b.idx, b.gen, b.batch, b.sealed, b.settings = idx, gen, idx.NewBatch(), true, nil
	if old != nil {
		if err := old.Close(); err != nil {
			slog.Warn("plant_index_close_old_failed", slog.String("error", err.Error()))
		}
	}

	slog.Info("plant_index_reloaded",
		slog.String("name", b.name),
		slog.String("generation", gen),
		slog.String("replaced", served))
	return true, nil
}

// PointerPath returns the file naming the served generation, or "" for an
// in-memory index.
func (b *BleveIndex) PointerPath() string {
	if b.root == "" {
		return ""
	}
	return b.currentPath()
}

// Close flushes pending writes and closes the index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var flushErr error
	if b.idx != nil && !b.shadow {
		flushErr = b.flushLocked()
	}
	if b.idx != nil {
		if err := b.idx.Close(); err != nil {
			return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "close index", err)
		}
	}
	// An unpromoted shadow was never served; drop its files.
	if b.shadow && b.root != "" && b.gen != "" {
		if err := os.RemoveAll(filepath.Join(b.root, b.gen)); err != nil {
			return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "remove abandoned shadow", err)
		}
	}
	return flushErr
}

// Generation returns the served generation directory name.
func (b *BleveIndex) Generation() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.gen
}

func (b *BleveIndex) currentPath() string {
	return filepath.Join(b.root, b.name+currentSuffix)
}

func (b *BleveIndex) readCurrent() (string, error) {
	data, err := os.ReadFile(b.currentPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "read index pointer", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// writeCurrent replaces the pointer file by rename so readers opening the
// index see either the old or the new generation.
func (b *BleveIndex) writeCurrent(gen string) error {
	tmp := b.currentPath() + ".tmp"
	if err := os.WriteFile(tmp, []byte(gen+"\n"), 0644); err != nil {
		return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "write index pointer", err)
	}
	if err := os.Rename(tmp, b.currentPath()); err != nil {
		return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "swap index pointer", err)
	}
	return nil
}

func errClosed() error {
	return amerrors.IndexError(amerrors.ErrCodeIndexUnavailable, "index is closed", nil)
}
