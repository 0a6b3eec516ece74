package index

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/plantsearch/internal/config"
	"github.com/Aman-CERP/plantsearch/internal/derive"
	"github.com/Aman-CERP/plantsearch/internal/locale"
	"github.com/Aman-CERP/plantsearch/internal/plant"
	"github.com/Aman-CERP/plantsearch/internal/store"
	"github.com/Aman-CERP/plantsearch/internal/ui"
)

// fakeStore serves records from memory. Properties of every locale are kept
// and filtered per request like the SQLite store does.
type fakeStore struct {
	records  []store.RecordWithProperties
	fetchErr error
	fetches  []int // offsets requested
}

func (s *fakeStore) CountRecords(ctx context.Context, loc string) (int, error) {
	return len(s.records), nil
}

func (s *fakeStore) FetchRecordsPage(ctx context.Context, limit, offset int, loc string) ([]store.RecordWithProperties, error) {
	s.fetches = append(s.fetches, offset)
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if offset >= len(s.records) {
		return nil, nil
	}
	end := min(offset+limit, len(s.records))
	var out []store.RecordWithProperties
	for _, r := range s.records[offset:end] {
		out = append(out, store.RecordWithProperties{
			Record:     r.Record,
			Properties: plant.RowsForLocale(r.Properties, loc),
		})
	}
	return out, nil
}

func (s *fakeStore) GetPlantsByID(ctx context.Context, ids []int64, loc string) ([]store.RecordWithProperties, error) {
	return nil, errors.New("not used")
}

func (s *fakeStore) PropertyValues(ctx context.Context, name string) ([]string, error) {
	return nil, errors.New("not used")
}

func (s *fakeStore) Close() error { return nil }

type writtenDoc struct {
	id     string
	fields map[string]any
}

// fakeIndex records every call in order.
type fakeIndex struct {
	mu        sync.Mutex
	exists    bool
	ops       []string
	docs      []writtenDoc
	refreshes int
	failAddAt int // 1-based AddDocument call that fails; 0 never
	adds      int
}

func (f *fakeIndex) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
}

func (f *fakeIndex) Exists(ctx context.Context) (bool, error) {
	f.record("exists")
	return f.exists, nil
}

func (f *fakeIndex) Delete(ctx context.Context) error {
	f.record("delete")
	f.exists = false
	f.docs = nil
	return nil
}

func (f *fakeIndex) Create(ctx context.Context, settings store.Settings) error {
	f.record("create")
	f.exists = true
	return nil
}

func (f *fakeIndex) SetMapping(ctx context.Context, fields []store.FieldSpec) error {
	f.record("mapping")
	return nil
}

func (f *fakeIndex) AddDocument(ctx context.Context, id string, fields map[string]any) error {
	f.record("add")
	f.adds++
	if f.failAddAt > 0 && f.adds == f.failAddAt {
		return errors.New("write rejected")
	}
	f.docs = append(f.docs, writtenDoc{id: id, fields: fields})
	return nil
}

func (f *fakeIndex) Refresh(ctx context.Context) error {
	f.record("refresh")
	f.refreshes++
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, q query.Query, opts store.SearchOptions) (*store.SearchResult, error) {
	return &store.SearchResult{}, nil
}

func (f *fakeIndex) DocCount(ctx context.Context) (uint64, error) {
	return uint64(len(f.docs)), nil
}

func (f *fakeIndex) Close() error { return nil }

// recordingRenderer captures renderer calls.
type recordingRenderer struct {
	ui.NopRenderer
	began     []string
	counts    []int
	progress  []ui.ProgressEvent
	errors    []ui.ErrorEvent
	completed *ui.CompletionStats
}

func (r *recordingRenderer) BeginLocale(code, label string, total int) {
	r.began = append(r.began, code+":"+label)
	r.counts = append(r.counts, total)
}

func (r *recordingRenderer) UpdateProgress(e ui.ProgressEvent) { r.progress = append(r.progress, e) }
func (r *recordingRenderer) AddError(e ui.ErrorEvent)          { r.errors = append(r.errors, e) }
func (r *recordingRenderer) Complete(s ui.CompletionStats)     { r.completed = &s }

func row(plantID int64, loc, name, encoded string) plant.PropertyRow {
	return plant.PropertyRow{PlantID: plantID, Locale: loc, Name: name, EncodedValues: encoded, Type: plant.TypeCheck}
}

func record(id int64, names []string, images []string, rows ...plant.PropertyRow) store.RecordWithProperties {
	return store.RecordWithProperties{
		Record: plant.Record{
			ID:         id,
			Identifier: plant.Identifier(names[0]),
			Names:      names,
			Images:     images,
		},
		Properties: rows,
	}
}

// twoPlants returns P1 with nl properties and P2 with en properties only.
func twoPlants() []store.RecordWithProperties {
	return []store.RecordWithProperties{
		record(1, []string{"Malus sylvestris"}, []string{"malus.jpg"},
			row(1, "nl", "vrucht", `["eetbaar"]`),
			row(1, "nl", "gebruik", `["bijenplant","haag"]`),
			row(1, "nl", "bloem", `["wit"]`),
			row(1, "en", "fruit", `["edible"]`),
		),
		record(2, []string{"Buxus sempervirens"}, nil,
			row(2, "en", "use", `["ornamental"]`),
		),
	}
}

func testConfig(locales ...config.LocaleConfig) *config.Config {
	cfg := config.NewConfig()
	if len(locales) > 0 {
		cfg.Locales = locales
	}
	return cfg
}

func newTestBuilder(t *testing.T, st store.PlantStore, idx store.SearchIndex, cfg *config.Config, r ui.Renderer) *Builder {
	t.Helper()

	vocab, err := locale.DefaultVocabulary()
	require.NoError(t, err)

	b, err := NewBuilder(BuilderDependencies{
		Store:    st,
		Index:    idx,
		Mapper:   locale.NewMapper(vocab, cfg.LocaleCodes()),
		Engine:   derive.NewEngine(vocab),
		Config:   cfg,
		Renderer: r,
	})
	require.NoError(t, err)
	return b
}
