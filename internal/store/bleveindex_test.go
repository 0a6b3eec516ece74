package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
)

var testFields = []FieldSpec{
	{Name: "names", Kind: FieldAnalyzed},
	{Name: "gebruik", Kind: FieldAnalyzed},
	{Name: "bloem", Kind: FieldKeyword},
	{Name: "locale", Kind: FieldKeyword},
	{Name: "eetbaar", Kind: FieldBoolean},
	{Name: "plantid", Kind: FieldNumeric},
}

func createIndex(t *testing.T, idx SearchIndex) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, idx.Create(ctx, DefaultSettings()))
	require.NoError(t, idx.SetMapping(ctx, testFields))
}

func addDocs(t *testing.T, idx SearchIndex) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, idx.AddDocument(ctx, "0", map[string]any{
		"id": 0, "plantid": int64(1), "locale": "nl",
		"names": []string{"Malus domestica", "Appel"}, "bloem": "wit", "eetbaar": true,
	}))
	require.NoError(t, idx.AddDocument(ctx, "1", map[string]any{
		"id": 1, "plantid": int64(2), "locale": "nl",
		"names": []string{"Buddleja davidii"}, "bloem": "paars", "eetbaar": false,
	}))
	require.NoError(t, idx.AddDocument(ctx, "2", map[string]any{
		"id": 2, "identifier": "x", "locale": "en", "images": true,
	}))
	require.NoError(t, idx.Refresh(ctx))
}

func hitIDs(res *SearchResult) []string {
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	return ids
}

func TestBleveIndex_Lifecycle(t *testing.T) {
	ctx := context.Background()

	// Given: a fresh in-memory index
	idx := NewMemBleveIndex("plant")
	defer idx.Close()

	exists, err := idx.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	// When: creating it and setting the mapping
	createIndex(t, idx)

	// Then: it exists and is empty
	exists, err = idx.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
	n, err := idx.DocCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// When: deleting it
	require.NoError(t, idx.Delete(ctx))

	// Then: it is gone and searches fail
	exists, err = idx.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = idx.Search(ctx, bleve.NewMatchAllQuery(), SearchOptions{})
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeIndexUnavailable))
}

func TestBleveIndex_RefreshControlsVisibility(t *testing.T) {
	ctx := context.Background()
	idx := NewMemBleveIndex("plant")
	defer idx.Close()
	createIndex(t, idx)

	// Given: a document added but not refreshed
	require.NoError(t, idx.AddDocument(ctx, "0", map[string]any{"locale": "nl"}))

	// Then: it is not yet searchable
	n, err := idx.DocCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// When: refreshing
	require.NoError(t, idx.Refresh(ctx))

	// Then: it is visible
	n, err = idx.DocCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestBleveIndex_SearchFields(t *testing.T) {
	ctx := context.Background()
	idx := NewMemBleveIndex("plant")
	defer idx.Close()
	createIndex(t, idx)
	addDocs(t, idx)

	t.Run("keyword exact match", func(t *testing.T) {
		q := bleve.NewTermQuery("wit")
		q.SetField("bloem")
		res, err := idx.Search(ctx, q, SearchOptions{Size: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"0"}, hitIDs(res))
	})

	t.Run("keyword does not match partial", func(t *testing.T) {
		q := bleve.NewTermQuery("wi")
		q.SetField("bloem")
		res, err := idx.Search(ctx, q, SearchOptions{Size: 10})
		require.NoError(t, err)
		assert.Empty(t, res.Hits)
	})

	t.Run("analyzed partial match is case insensitive", func(t *testing.T) {
		q := bleve.NewMatchQuery("BUDD")
		q.SetField("names")
		res, err := idx.Search(ctx, q, SearchOptions{Size: 10})
		require.NoError(t, err)
		require.NotEmpty(t, res.Hits)
		assert.Equal(t, "1", res.Hits[0].ID)
	})

	t.Run("boolean field", func(t *testing.T) {
		q := bleve.NewBoolFieldQuery(true)
		q.SetField("eetbaar")
		res, err := idx.Search(ctx, q, SearchOptions{Size: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"0"}, hitIDs(res))
	})

	t.Run("stored fields returned", func(t *testing.T) {
		q := bleve.NewTermQuery("en")
		q.SetField("locale")
		res, err := idx.Search(ctx, q, SearchOptions{Size: 10})
		require.NoError(t, err)
		require.Len(t, res.Hits, 1)
		assert.Equal(t, "x", res.Hits[0].Fields["identifier"])
		assert.Equal(t, "en", res.Hits[0].Fields["locale"])
		_, hasPlantID := res.Hits[0].Fields["plantid"]
		assert.False(t, hasPlantID)
	})

	t.Run("paging", func(t *testing.T) {
		res, err := idx.Search(ctx, bleve.NewMatchAllQuery(), SearchOptions{From: 1, Size: 1})
		require.NoError(t, err)
		assert.Equal(t, uint64(3), res.Total)
		assert.Len(t, res.Hits, 1)
	})
}

func TestBleveIndex_CreateRejectsBadSettings(t *testing.T) {
	idx := NewMemBleveIndex("plant")
	defer idx.Close()

	s := DefaultSettings()
	s.MinGram, s.MaxGram = 3, 2
	err := idx.Create(context.Background(), s)

	assert.Equal(t, amerrors.CategoryValidation, amerrors.GetCategory(err))
}

func TestBleveIndex_SetMappingBeforeCreate(t *testing.T) {
	idx := NewMemBleveIndex("plant")
	defer idx.Close()

	err := idx.SetMapping(context.Background(), testFields)

	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeIndexUnavailable))
}

func TestBleveIndex_MappingConflict(t *testing.T) {
	ctx := context.Background()
	idx := NewMemBleveIndex("plant")
	defer idx.Close()
	require.NoError(t, idx.Create(ctx, DefaultSettings()))

	err := idx.SetMapping(ctx, []FieldSpec{
		{Name: "flower", Kind: FieldAnalyzed},
		{Name: "flower", Kind: FieldKeyword},
	})

	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeMappingConflict))
}

func TestBleveIndex_AddDocumentWithoutIndex(t *testing.T) {
	idx := NewMemBleveIndex("plant")
	defer idx.Close()

	err := idx.AddDocument(context.Background(), "0", map[string]any{"locale": "nl"})

	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeIndexUnavailable))
}

func TestBleveIndex_ShadowPromote(t *testing.T) {
	ctx := context.Background()

	// Given: a live index with documents
	idx := NewMemBleveIndex("plant")
	defer idx.Close()
	createIndex(t, idx)
	addDocs(t, idx)

	// When: building a shadow with a single document
	shadow, err := idx.Shadow(ctx)
	require.NoError(t, err)
	createIndex(t, shadow)
	require.NoError(t, shadow.AddDocument(ctx, "0", map[string]any{"locale": "fr"}))

	// Then: the live index still serves the old documents
	n, err := idx.DocCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
	_, err = shadow.Search(ctx, bleve.NewMatchAllQuery(), SearchOptions{})
	assert.Error(t, err, "shadow does not serve searches")

	// When: promoting
	require.NoError(t, idx.Promote(ctx, shadow))

	// Then: searches see only the shadow's document, including the unflushed one
	res, err := idx.Search(ctx, bleve.NewMatchAllQuery(), SearchOptions{Size: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "fr", res.Hits[0].Fields["locale"])
}

func TestBleveIndex_OnDiskReopen(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "index")

	// Given: an on-disk index with documents
	idx, err := OpenBleveIndex(root, "plant")
	require.NoError(t, err)
	createIndex(t, idx)
	addDocs(t, idx)
	gen := idx.Generation()
	require.NoError(t, idx.Close())

	// When: reopening
	reopened, err := OpenBleveIndex(root, "plant")
	require.NoError(t, err)
	defer reopened.Close()

	// Then: the same generation is served with its documents and analyzer
	assert.Equal(t, gen, reopened.Generation())
	n, err := reopened.DocCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	q := bleve.NewMatchQuery("appel")
	q.SetField("names")
	res, err := reopened.Search(ctx, q, SearchOptions{Size: 10})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "0", res.Hits[0].ID)
}

func TestBleveIndex_OnDiskDeleteAndShadow(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "index")

	idx, err := OpenBleveIndex(root, "plant")
	require.NoError(t, err)
	defer idx.Close()
	createIndex(t, idx)
	oldGen := idx.Generation()

	// When: promoting a shadow
	shadow, err := idx.Shadow(ctx)
	require.NoError(t, err)
	createIndex(t, shadow)
	require.NoError(t, idx.Promote(ctx, shadow))

	// Then: the pointer names the new generation and the old one is removed
	data, err := os.ReadFile(filepath.Join(root, "plant.current"))
	require.NoError(t, err)
	assert.Equal(t, idx.Generation()+"\n", string(data))
	assert.NotEqual(t, oldGen, idx.Generation())
	assert.NoDirExists(t, filepath.Join(root, oldGen))

	// When: deleting
	require.NoError(t, idx.Delete(ctx))

	// Then: pointer and generation are gone
	assert.NoFileExists(t, filepath.Join(root, "plant.current"))
	exists, err := idx.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBleveIndex_AbandonedShadowIsRemoved(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "index")
	idx, err := OpenBleveIndex(root, "plant")
	require.NoError(t, err)
	defer idx.Close()

	shadow, err := idx.Shadow(ctx)
	require.NoError(t, err)
	createIndex(t, shadow)
	gen := shadow.(*BleveIndex).Generation()
	require.DirExists(t, filepath.Join(root, gen))

	require.NoError(t, shadow.Close())

	assert.NoDirExists(t, filepath.Join(root, gen))
	assert.NoFileExists(t, filepath.Join(root, "plant.current"))
}

// buildSealed builds a generation through idx the way a refresh does and
// seals it.
func buildSealed(t *testing.T, idx *BleveIndex) {
	t.Helper()
	createIndex(t, idx)
	addDocs(t, idx)
	require.NoError(t, idx.Seal(context.Background()))
}

func TestBleveIndex_ReaderDoesNotBlockRefresh(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "index")

	// Given: a built index and a second handle serving it, as a running
	// server would
	writer, err := OpenBleveIndex(root, "plant")
	require.NoError(t, err)
	defer writer.Close()
	buildSealed(t, writer)
	first := writer.Generation()

	reader, err := OpenBleveIndex(root, "plant", WithLockTimeout(500*time.Millisecond))
	require.NoError(t, err)
	defer reader.Close()
	n, err := reader.DocCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	// When: the writer rebuilds in place while the reader stays open
	done := make(chan error, 1)
	go func() {
		if err := writer.Delete(ctx); err != nil {
			done <- err
			return
		}
		if err := writer.Create(ctx, DefaultSettings()); err != nil {
			done <- err
			return
		}
		if err := writer.SetMapping(ctx, testFields); err != nil {
			done <- err
			return
		}
		if err := writer.AddDocument(ctx, "9", map[string]any{"id": 9, "locale": "nl"}); err != nil {
			done <- err
			return
		}
		if err := writer.Refresh(ctx); err != nil {
			done <- err
			return
		}
		done <- writer.Seal(ctx)
	}()

	// Then: the rebuild completes and the reader moves to the new generation
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("rebuild blocked by an open reader")
	}
	assert.NotEqual(t, first, writer.Generation())

	changed, err := reader.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, writer.Generation(), reader.Generation())
	n, err = reader.DocCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestBleveIndex_OpenDuringBuildFailsFast(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "index")

	// Given: a generation that is still being written
	writer, err := OpenBleveIndex(root, "plant")
	require.NoError(t, err)
	defer writer.Close()
	createIndex(t, writer)

	// When: another handle opens the index
	start := time.Now()
	_, err = OpenBleveIndex(root, "plant", WithLockTimeout(100*time.Millisecond))

	// Then: it gives up after the lock timeout with a locked error
	require.Error(t, err)
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeIndexLocked))
	assert.Less(t, time.Since(start), 5*time.Second)

	// When: the build finishes
	addDocs(t, writer)
	require.NoError(t, writer.Seal(ctx))

	// Then: the generation opens
	reader, err := OpenBleveIndex(root, "plant", WithLockTimeout(100*time.Millisecond))
	require.NoError(t, err)
	defer reader.Close()
	n, err := reader.DocCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestBleveIndex_SealedRejectsWrites(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "index")

	idx, err := OpenBleveIndex(root, "plant")
	require.NoError(t, err)
	defer idx.Close()
	buildSealed(t, idx)

	// Given: the sealed generation still serves searches
	q := bleve.NewMatchQuery("appel")
	q.SetField("names")
	res, err := idx.Search(ctx, q, SearchOptions{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, hitIDs(res))

	// When: writing to it
	err = idx.AddDocument(ctx, "7", map[string]any{"id": 7})

	// Then: the write is rejected
	require.Error(t, err)
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeWriteRejected))

	// And: a second seal is a no-op
	assert.NoError(t, idx.Seal(ctx))
}

func TestBleveIndex_ReloadFollowsPromotion(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "index")

	// Given: a reader opened before any index exists
	reader, err := OpenBleveIndex(root, "plant")
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, filepath.Join(root, "plant.current"), reader.PointerPath())

	writer, err := OpenBleveIndex(root, "plant")
	require.NoError(t, err)
	defer writer.Close()
	buildSealed(t, writer)

	// When: reloading after the first build
	changed, err := reader.Reload(ctx)

	// Then: the reader serves it
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, writer.Generation(), reader.Generation())

	// When: the writer promotes a shadow
	shadow, err := writer.Shadow(ctx)
	require.NoError(t, err)
	createIndex(t, shadow)
	require.NoError(t, shadow.AddDocument(ctx, "5", map[string]any{"id": 5, "locale": "en"}))
	require.NoError(t, writer.Promote(ctx, shadow))

	changed, err = reader.Reload(ctx)

	// Then: the reader moves to the promoted generation
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, writer.Generation(), reader.Generation())
	n, err := reader.DocCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	// And: an unchanged pointer does nothing
	changed, err = reader.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestBleveIndex_ReloadSkipsWriterAndMemory(t *testing.T) {
	ctx := context.Background()

	mem := NewMemBleveIndex("plant")
	defer mem.Close()
	createIndex(t, mem)
	assert.Empty(t, mem.PointerPath())
	assert.NoError(t, mem.Seal(ctx))
	changed, err := mem.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mem.AddDocument(ctx, "1", map[string]any{"id": 1}))

	writer, err := OpenBleveIndex(filepath.Join(t.TempDir(), "index"), "plant")
	require.NoError(t, err)
	defer writer.Close()
	createIndex(t, writer)
	changed, err = writer.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
}
