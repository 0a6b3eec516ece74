package search

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
	"github.com/Aman-CERP/plantsearch/internal/locale"
	"github.com/Aman-CERP/plantsearch/internal/store"
)

func newTestMapper(t *testing.T) *locale.Mapper {
	t.Helper()
	vocab, err := locale.DefaultVocabulary()
	require.NoError(t, err)
	return locale.NewMapper(vocab, []string{"nl", "en"})
}

// newTestFinder indexes two plants in nl and en plus one nl fallback
// document.
func newTestFinder(t *testing.T) *Finder {
	t.Helper()
	ctx := context.Background()
	mapper := newTestMapper(t)

	idx := store.NewMemBleveIndex("plant")
	t.Cleanup(func() { _ = idx.Close() })

	specs, err := mapper.BuildIndexMapping()
	require.NoError(t, err)
	require.NoError(t, idx.Create(ctx, store.DefaultSettings()))
	require.NoError(t, idx.SetMapping(ctx, specs))

	docs := []map[string]any{
		{"id": int64(0), "plantid": int64(1), "identifier": "malus", "locale": "nl",
			"names": []string{"Malus domestica", "Appel"}, "gebruik": "fruitboom", "eetbaar": true, "duurzaam": false},
		{"id": int64(1), "plantid": int64(2), "identifier": "buddleja", "locale": "nl",
			"names": []string{"Buddleja davidii", "Vlinderstruik"}, "gebruik": "waardplant voor vlinders", "eetbaar": false, "duurzaam": true},
		{"id": int64(2), "identifier": "hedera", "locale": "nl", "images": false},
		{"id": int64(3), "plantid": int64(1), "identifier": "malus", "locale": "en",
			"names": []string{"Malus domestica", "Apple"}, "use": "fruit tree", "edible": true, "sustainable": false},
		{"id": int64(4), "plantid": int64(2), "identifier": "buddleja", "locale": "en",
			"names": []string{"Buddleja davidii", "Butterfly bush"}, "use": "butterfly host plant", "edible": false, "sustainable": true},
	}
	for _, d := range docs {
		require.NoError(t, idx.AddDocument(ctx, docID(d), d))
	}
	require.NoError(t, idx.Refresh(ctx))

	return NewFinder(idx, mapper, WithDefaultLimit(10))
}

func docID(d map[string]any) string {
	return strconv.FormatInt(d["id"].(int64), 10)
}

func docIDs(res *Result) []string {
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.DocID
	}
	return ids
}

func TestFinder_Search_RestrictsToLocale(t *testing.T) {
	// Given: "Appel" in nl and "Apple" in en share n-grams
	f := newTestFinder(t)

	// When: searching nl
	res, err := f.Search(context.Background(), "appel", "nl", SearchOptions{})

	// Then: only the nl document matches
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, docIDs(res))
	hit := res.Hits[0]
	assert.Equal(t, int64(1), hit.PlantID)
	assert.True(t, hit.HasPlantID)
	assert.Equal(t, "nl", hit.Locale)
	assert.Equal(t, "malus", hit.Identifier)
}

func TestFinder_Search_CombineOrMatchesWholeLocale(t *testing.T) {
	f := newTestFinder(t)

	res, err := f.Search(context.Background(), "appel", "nl", SearchOptions{Combinator: CombineOr})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"0", "1", "2", "3"}, docIDs(res))
}

func TestFinder_Search_EmptyExpressionMatchesLocale(t *testing.T) {
	f := newTestFinder(t)

	res, err := f.Search(context.Background(), "", "en", SearchOptions{})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"3", "4"}, docIDs(res))
	assert.Equal(t, uint64(2), res.Total)
}

func TestFinder_Search_EmptyLocaleSearchesAll(t *testing.T) {
	f := newTestFinder(t)

	res, err := f.Search(context.Background(), "mal", "", SearchOptions{})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"0", "3"}, docIDs(res))
}

func TestFinder_Search_FieldQuery(t *testing.T) {
	f := newTestFinder(t)

	res, err := f.Search(context.Background(), "gebruik:vlinders", "", SearchOptions{})

	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "1", res.Hits[0].DocID)
}

func TestFinder_Search_RequireDerivedConcept(t *testing.T) {
	f := newTestFinder(t)
	ctx := context.Background()

	t.Run("in one locale", func(t *testing.T) {
		res, err := f.Search(ctx, "", "nl", SearchOptions{Require: []string{"edible"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"0"}, docIDs(res))
	})

	t.Run("across locales", func(t *testing.T) {
		res, err := f.Search(ctx, "", "", SearchOptions{Require: []string{"sustainable"}})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"1", "4"}, docIDs(res))
	})

	t.Run("unknown concept", func(t *testing.T) {
		_, err := f.Search(ctx, "", "nl", SearchOptions{Require: []string{"poisonous"}})
		require.Error(t, err)
		assert.Equal(t, amerrors.ErrCodeInvalidInput, amerrors.GetCode(err))
	})
}

func TestFinder_Search_InvalidQuery(t *testing.T) {
	f := newTestFinder(t)

	_, err := f.Search(context.Background(), "names:>>", "nl", SearchOptions{})

	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeInvalidQuery, amerrors.GetCode(err))
}

func TestFinder_Search_Paging(t *testing.T) {
	f := newTestFinder(t)
	ctx := context.Background()

	first, err := f.Search(ctx, "", "", SearchOptions{Limit: 2})
	require.NoError(t, err)
	second, err := f.Search(ctx, "", "", SearchOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)

	assert.Len(t, first.Hits, 2)
	assert.Len(t, second.Hits, 2)
	assert.Equal(t, uint64(5), first.Total)
	assert.NotContains(t, docIDs(second), first.Hits[0].DocID)

	_, err = f.Search(ctx, "", "", SearchOptions{Offset: -1})
	assert.Error(t, err)
}

func TestFinder_FindPaginated(t *testing.T) {
	f := newTestFinder(t)
	ctx := context.Background()

	t.Run("returns plant ids", func(t *testing.T) {
		ids, err := f.FindPaginated(ctx, "davidii", 0, 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 2}, ids)
	})

	t.Run("skips fallback documents", func(t *testing.T) {
		ids, err := f.FindPaginated(ctx, "", 0, 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1, 2, 1, 2}, ids)
	})

	t.Run("rejects negative offset", func(t *testing.T) {
		_, err := f.FindPaginated(ctx, "", -1, 10)
		require.Error(t, err)
		assert.Equal(t, amerrors.ErrCodeInvalidInput, amerrors.GetCode(err))
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		_, err := f.FindPaginated(ctx, "", 0, 0)
		require.Error(t, err)
		assert.Equal(t, amerrors.ErrCodeInvalidInput, amerrors.GetCode(err))
	})

	t.Run("rejects limit above the cap", func(t *testing.T) {
		// When: asking for one more than a page can hold
		ids, err := f.FindPaginated(ctx, "", 0, MaxLimit+1)

		// Then: the request is refused rather than silently shortened
		require.Error(t, err)
		assert.Nil(t, ids)
		assert.Equal(t, amerrors.ErrCodeInvalidInput, amerrors.GetCode(err))
		assert.Contains(t, err.Error(), "must not exceed 1000")
	})
}

func TestApplyDefaults(t *testing.T) {
	opts, err := applyDefaults(SearchOptions{}, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, opts.Limit)

	opts, err = applyDefaults(SearchOptions{}, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, opts.Limit)

	opts, err = applyDefaults(SearchOptions{Limit: MaxLimit}, 7)
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, opts.Limit)

	opts, err = applyDefaults(SearchOptions{}, MaxLimit+5)
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, opts.Limit, "a configured default is lowered to the cap")

	_, err = applyDefaults(SearchOptions{Limit: -1}, 7)
	assert.Error(t, err)
}

func TestParseCombinator(t *testing.T) {
	c, ok := ParseCombinator("or")
	assert.True(t, ok)
	assert.Equal(t, CombineOr, c)

	c, ok = ParseCombinator("")
	assert.True(t, ok)
	assert.Equal(t, CombineAnd, c)

	_, ok = ParseCombinator("xor")
	assert.False(t, ok)
}

func TestPlantID(t *testing.T) {
	id, ok := plantID(float64(42))
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = plantID(nil)
	assert.False(t, ok)

	id, ok = plantID("7")
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestHit_NameAndFlags(t *testing.T) {
	// Given: the nl hit of plant 2
	f := newTestFinder(t)
	res, err := f.Search(context.Background(), "gebruik:vlinders", "nl", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	h := res.Hits[0]

	// Then: its first name and the set nl flags are reported
	assert.Equal(t, "Buddleja davidii", h.Name())
	assert.Equal(t, []string{"duurzaam"}, h.Flags(f.mapper))

	// And: a fallback document has neither
	fallback := Hit{Locale: "nl", Fields: map[string]any{"identifier": "hedera", "images": false}}
	assert.Empty(t, fallback.Name())
	assert.Empty(t, fallback.Flags(f.mapper))
}

func TestFirstName(t *testing.T) {
	assert.Equal(t, "Malus", firstName("Malus"))
	assert.Equal(t, "Malus", firstName([]any{"Malus", "Appel"}))
	assert.Equal(t, "", firstName(nil))
	assert.Equal(t, "", firstName([]any{}))
}
