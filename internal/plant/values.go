package plant

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode/utf8"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
)

// DecodeValues decodes an encoded value list. A JSON array yields its
// elements in order and a scalar yields a one-element list. Non-string
// elements keep their JSON text, so 3 becomes "3" and true becomes "true".
// An empty input or JSON null decodes to an empty list.
func DecodeValues(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return []string{}, nil
	}

	var elems []json.RawMessage
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &elems); err != nil {
			return nil, invalidValues(raw, err)
		}
	} else {
		if !json.Valid([]byte(raw)) {
			return nil, invalidValues(raw, nil)
		}
		elems = []json.RawMessage{json.RawMessage(raw)}
	}

	values := make([]string, 0, len(elems))
	for _, e := range elems {
		var s string
		if err := json.Unmarshal(e, &s); err == nil {
			values = append(values, s)
			continue
		}
		values = append(values, string(bytes.TrimSpace(e)))
	}
	return values, nil
}

// Identifier derives the stable identifier of a plant from its raw names blob.
func Identifier(rawNames string) string {
	sum := sha256.Sum256([]byte(rawNames))
	return hex.EncodeToString(sum[:])
}

// maxRawDetail bounds the raw text echoed in an invalid values error.
const maxRawDetail = 64

func invalidValues(raw string, cause error) error {
	if len(raw) > maxRawDetail {
		cut := maxRawDetail
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		raw = raw[:cut] + "..."
	}
	return amerrors.New(amerrors.ErrCodeInvalidValues, "property values are not valid JSON", cause).
		WithDetail("raw", raw)
}
