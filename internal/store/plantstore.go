package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
	"github.com/Aman-CERP/plantsearch/internal/plant"
)

// Schema is the relational layout the plant store reads.
// Values and names columns hold JSON encoded lists.
const Schema = `
CREATE TABLE IF NOT EXISTS plant (
	id         INTEGER PRIMARY KEY,
	identifier TEXT NOT NULL DEFAULT '',
	names      TEXT NOT NULL DEFAULT '[]',
	images     TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME,
	updated_at DATETIME
);

CREATE TABLE IF NOT EXISTS property (
	plant_id INTEGER NOT NULL REFERENCES plant(id),
	locale   TEXT NOT NULL,
	name     TEXT NOT NULL,
	"values" TEXT NOT NULL DEFAULT '[]',
	type     TEXT NOT NULL DEFAULT 'string'
);

CREATE INDEX IF NOT EXISTS idx_property_plant_locale ON property(plant_id, locale);
CREATE INDEX IF NOT EXISTS idx_property_name ON property(name);
`

// SQLitePlantStore reads plants from a SQLite database.
type SQLitePlantStore struct {
	db *sql.DB
}

// Verify interface implementation at compile time
var _ PlantStore = (*SQLitePlantStore)(nil)

// OpenPlantStore opens the plant database at path read-only.
func OpenPlantStore(path string) (*SQLitePlantStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeStoreUnavailable, "plant database not found: "+path, err).
			WithSuggestion("Set store.path in .plantsearch.yaml or PLANTSEARCH_STORE_PATH")
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeStoreUnavailable, "open plant database", err)
	}
	// A single connection keeps the query_only pragma in effect for every query.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA query_only = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, amerrors.New(amerrors.ErrCodeStoreUnavailable, "configure plant database", err)
		}
	}

	s := NewSQLitePlantStore(db)
	if err := s.checkSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Debug("plant_store_opened", slog.String("path", path))
	return s, nil
}

// NewSQLitePlantStore wraps an open database handle.
func NewSQLitePlantStore(db *sql.DB) *SQLitePlantStore {
	return &SQLitePlantStore{db: db}
}

func (s *SQLitePlantStore) checkSchema(ctx context.Context) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('plant', 'property')`).Scan(&n)
	if err != nil {
		return amerrors.New(amerrors.ErrCodeStoreUnavailable, "read plant database schema", err)
	}
	if n != 2 {
		return amerrors.New(amerrors.ErrCodeStoreCorrupt, "plant database lacks plant or property table", nil)
	}
	return nil
}

// CountRecords counts every plant. The locale does not narrow the count,
// since plants without rows in a locale are still indexed for it.
func (s *SQLitePlantStore) CountRecords(ctx context.Context, locale string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plant`).Scan(&n); err != nil {
		return 0, amerrors.StoreError("count plants", err).WithDetail("locale", locale)
	}
	return n, nil
}

// FetchRecordsPage implements PlantStore.
func (s *SQLitePlantStore) FetchRecordsPage(ctx context.Context, limit, offset int, locale string) ([]RecordWithProperties, error) {
	if limit <= 0 || offset < 0 {
		return nil, amerrors.ValidationError(fmt.Sprintf("invalid page limit=%d offset=%d", limit, offset), nil)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identifier, names, images, created_at, updated_at
		FROM plant
		ORDER BY id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, amerrors.StoreError("fetch plant page", err).
			WithDetail("offset", fmt.Sprint(offset))
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	return s.attachProperties(ctx, records, locale)
}

// GetPlantsByID implements PlantStore.
func (s *SQLitePlantStore) GetPlantsByID(ctx context.Context, ids []int64, locale string) ([]RecordWithProperties, error) {
	if len(ids) == 0 {
		return []RecordWithProperties{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identifier, names, images, created_at, updated_at
		FROM plant
		WHERE id IN (`+placeholders(len(ids))+`)
		ORDER BY id`, int64Args(ids)...)
	if err != nil {
		return nil, amerrors.StoreError("fetch plants by id", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	return s.attachProperties(ctx, records, locale)
}

// PropertyValues implements PlantStore.
func (s *SQLitePlantStore) PropertyValues(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT "values" FROM property WHERE name = ?`, name)
	if err != nil {
		return nil, amerrors.StoreError("read property values", err).WithDetail("property", name)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, amerrors.StoreError("scan property values", err)
		}
		values, err := plant.DecodeValues(raw)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			seen[v] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, amerrors.StoreError("iterate property values", err)
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out, nil
}

// Close closes the database.
func (s *SQLitePlantStore) Close() error {
	return s.db.Close()
}

func (s *SQLitePlantStore) attachProperties(ctx context.Context, records []plant.Record, locale string) ([]RecordWithProperties, error) {
	out := make([]RecordWithProperties, len(records))
	if len(records) == 0 {
		return out, nil
	}

	index := make(map[int64]int, len(records))
	ids := make([]int64, len(records))
	for i, r := range records {
		out[i].Record = r
		index[r.ID] = i
		ids[i] = r.ID
	}

	args := append(int64Args(ids), locale)
	rows, err := s.db.QueryContext(ctx, `
		SELECT plant_id, locale, name, "values", type
		FROM property
		WHERE plant_id IN (`+placeholders(len(ids))+`) AND locale = ?
		ORDER BY plant_id, rowid`, args...)
	if err != nil {
		return nil, amerrors.StoreError("fetch property rows", err).WithDetail("locale", locale)
	}
	defer rows.Close()

	for rows.Next() {
		var row plant.PropertyRow
		var typ string
		if err := rows.Scan(&row.PlantID, &row.Locale, &row.Name, &row.EncodedValues, &typ); err != nil {
			return nil, amerrors.StoreError("scan property row", err)
		}
		row.Type = plant.ValueType(typ)
		i, ok := index[row.PlantID]
		if !ok {
			continue
		}
		out[i].Properties = append(out[i].Properties, row)
	}
	if err := rows.Err(); err != nil {
		return nil, amerrors.StoreError("iterate property rows", err)
	}
	return out, nil
}

func scanRecords(rows *sql.Rows) ([]plant.Record, error) {
	defer rows.Close()

	var records []plant.Record
	for rows.Next() {
		var (
			r                  plant.Record
			namesRaw, imgRaw   string
			createdAt, updated any
		)
		if err := rows.Scan(&r.ID, &r.Identifier, &namesRaw, &imgRaw, &createdAt, &updated); err != nil {
			return nil, amerrors.StoreError("scan plant row", err)
		}

		names, err := plant.DecodeValues(namesRaw)
		if err != nil {
			return nil, amerrors.New(amerrors.ErrCodeStoreCorrupt, fmt.Sprintf("plant %d has malformed names", r.ID), err)
		}
		images, err := plant.DecodeValues(imgRaw)
		if err != nil {
			return nil, amerrors.New(amerrors.ErrCodeStoreCorrupt, fmt.Sprintf("plant %d has malformed images", r.ID), err)
		}
		r.Names = names
		r.Images = images
		if r.Identifier == "" {
			r.Identifier = plant.Identifier(namesRaw)
		}
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updated)

		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, amerrors.StoreError("iterate plant rows", err)
	}
	return records, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime accepts what SQLite drivers hand back for DATETIME columns.
// Unparseable values yield the zero time.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case int64:
		return time.Unix(t, 0).UTC()
	case []byte:
		return parseTime(string(t))
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
