package plant

import (
	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
)

// FromRecord builds the proxy for record in locale. Only rows of that
// locale are applied, in row order, each replacing any earlier value.
func FromRecord(record Record, rows []PropertyRow, locale string) (*Proxy, error) {
	p := NewProxy(record.ID)
	p.identifier = record.Identifier
	p.createdAt = record.CreatedAt
	p.updatedAt = record.UpdatedAt

	for _, row := range rows {
		if row.Locale != locale {
			continue
		}
		values, err := DecodeValues(row.EncodedValues)
		if err != nil {
			if pe, ok := amerrors.As(err); ok {
				pe.WithDetail("property", row.Name)
			}
			return nil, err
		}
		typ := row.Type
		if typ == "" {
			typ = TypeString
		}
		if err := p.SetTyped(row.Name, values, true, typ); err != nil {
			return nil, err
		}
	}

	p.SetNames(record.Names)
	if record.HasImages() && !p.Has(PropImages) {
		if err := p.SetTyped(PropImages, record.Images, true, TypeImages); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// RowsForLocale returns the rows of locale, preserving order.
func RowsForLocale(rows []PropertyRow, locale string) []PropertyRow {
	var out []PropertyRow
	for _, row := range rows {
		if row.Locale == locale {
			out = append(out, row)
		}
	}
	return out
}
