package plant

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
)

func TestDecodeValues(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"string list", `["eetbaar","aparte smaak"]`, []string{"eetbaar", "aparte smaak"}},
		{"single element", `["red"]`, []string{"red"}},
		{"scalar string", `"red"`, []string{"red"}},
		{"number", `3`, []string{"3"}},
		{"mixed", `["a", 2, true]`, []string{"a", "2", "true"}},
		{"empty list", `[]`, []string{}},
		{"null", `null`, []string{}},
		{"blank", ``, []string{}},
		{"unicode", `["hôte pour les papillons"]`, []string{"hôte pour les papillons"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeValues(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeValues_InvalidJSON(t *testing.T) {
	for _, raw := range []string{`[`, `red`, `["a",]`} {
		_, err := DecodeValues(raw)
		require.Error(t, err, raw)
		assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeInvalidValues))
	}
}

func TestDecodeValues_InvalidJSONDetailKeepsRunesWhole(t *testing.T) {
	// Given: broken JSON whose 64th byte falls inside a two-byte rune
	raw := `["` + strings.Repeat("a", 61) + "éééé"

	// When: decoding it
	_, err := DecodeValues(raw)

	// Then: the echoed text is cut before the rune, not through it
	require.Error(t, err)
	pe, ok := amerrors.As(err)
	require.True(t, ok)
	detail := pe.Details["raw"]
	assert.True(t, utf8.ValidString(detail), "detail %q is not valid UTF-8", detail)
	assert.Equal(t, `["`+strings.Repeat("a", 61)+"...", detail)
}

func TestDecodeSetGet_RoundTrip(t *testing.T) {
	rows := []string{
		`["red","blue","red"]`,
		`["waardplant voor vlinders","bijenplant"]`,
		`[]`,
		`["Wirtpflanze für Schmetterlinge"]`,
	}

	for _, raw := range rows {
		// Given: a decoded value list
		decoded, err := DecodeValues(raw)
		require.NoError(t, err)

		// When: storing and reading it back
		p := NewProxy(1)
		require.NoError(t, p.SetTyped("prop", decoded, true, TypeCheck))

		// Then: the ordered list is identical
		assert.Equal(t, decoded, p.Get("prop"))
	}
}

func TestIdentifier_IsStable(t *testing.T) {
	a := Identifier(`["Malus domestica","Apple"]`)
	b := Identifier(`["Malus domestica","Apple"]`)
	c := Identifier(`["Apple"]`)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestValueType_Valid(t *testing.T) {
	assert.True(t, TypeRadio.Valid())
	assert.True(t, TypeLines.Valid())
	assert.False(t, ValueType("bogus").Valid())
	assert.False(t, ValueType("").Valid())
}

func TestFromRecord_FiltersLocale(t *testing.T) {
	// Given: a record with rows in two locales
	created := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	record := Record{
		ID:         5,
		Identifier: "abc",
		Names:      []string{"Malus domestica", "Appel"},
		Images:     []string{"apple.jpg"},
		CreatedAt:  created,
	}
	rows := []PropertyRow{
		{PlantID: 5, Locale: "nl", Name: "vrucht", EncodedValues: `["eetbaar"]`, Type: TypeCheck},
		{PlantID: 5, Locale: "en", Name: "fruit", EncodedValues: `["edible"]`, Type: TypeCheck},
		{PlantID: 5, Locale: "nl", Name: "bloem", EncodedValues: `"wit"`, Type: TypeRadio},
	}

	// When: building the nl proxy
	p, err := FromRecord(record, rows, "nl")
	require.NoError(t, err)

	// Then: only nl rows are present, plus names and images
	assert.Equal(t, []string{PropNames, "vrucht", "bloem", PropImages}, p.AllPropertyNames())
	assert.Equal(t, []string{"eetbaar"}, p.Get("vrucht"))
	assert.Equal(t, []string{"wit"}, p.Get("bloem"))
	assert.Equal(t, "Malus domestica", p.Name())
	assert.Equal(t, "abc", p.Identifier())
	assert.Equal(t, created, p.CreatedAt())
	img, ok := p.Image()
	assert.True(t, ok)
	assert.Equal(t, "apple.jpg", img)
}

func TestFromRecord_InvalidRowType(t *testing.T) {
	rows := []PropertyRow{{PlantID: 1, Locale: "en", Name: "x", EncodedValues: `["a"]`, Type: "bogus"}}

	_, err := FromRecord(Record{ID: 1}, rows, "en")

	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeInvalidValueType))
}

func TestRowsForLocale(t *testing.T) {
	rows := []PropertyRow{
		{Locale: "nl", Name: "a"},
		{Locale: "en", Name: "b"},
		{Locale: "nl", Name: "c"},
	}

	got := RowsForLocale(rows, "nl")

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "c", got[1].Name)
	assert.Empty(t, RowsForLocale(rows, "fr"))
}
