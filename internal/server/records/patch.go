package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
)

// Patch is a partial record: the top-level fields a client supplied for a
// create or an update. Values are limited to strings and one-level string
// maps; DecodePatch enforces that.
type Patch map[string]Value

// Str returns the string value stored under key, or "".
func (p Patch) Str(key string) string {
	return p[key].Str()
}

// Profile returns the profile answers carried by the patch.
func (p Patch) Profile() (map[string]string, bool) {
	v, ok := p[KeyProfile]
	if !ok || !v.IsMap() {
		return nil, false
	}
	return v.StrMap(), true
}

// DecodePatch parses a request body into a Patch. It fails with
// common.ErrBadRequest when the body is empty, is not a single JSON object,
// or carries a value outside the accepted set: strings, numbers and booleans
// (kept as their literal text) and flat objects of those. Server-managed
// timestamps are dropped and the legacy "risk_bucket" key is renamed.
func DecodePatch(data []byte) (Patch, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty request body", common.ErrBadRequest)
	}

	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", common.ErrBadRequest, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after JSON object", common.ErrBadRequest)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", common.ErrBadRequest)
	}

	patch := make(Patch, len(fields))
	for key, raw := range fields {
		switch key {
		case KeySubmittedAt, KeyUpdatedAt:
			continue
		}

		v, err := parseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", common.ErrBadRequest, key, err)
		}

		switch key {
		case KeyProfile:
			if !v.IsMap() {
				return nil, fmt.Errorf("%w: field %q must be an object", common.ErrBadRequest, key)
			}
		case KeyEmail, KeyPassword, KeyUsername, KeyRiskBucket, legacyKeyRiskBucket:
			if v.IsMap() {
				return nil, fmt.Errorf("%w: field %q must be a string", common.ErrBadRequest, key)
			}
		}

		if key == legacyKeyRiskBucket {
			if _, ok := fields[KeyRiskBucket]; ok {
				continue
			}
			key = KeyRiskBucket
		}
		patch[key] = v
	}

	return patch, nil
}

// parseValue maps one JSON value onto the closed value set.
func parseValue(raw json.RawMessage) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Value{}, err
	}

	if s, ok := scalarText(v); ok {
		return String(s), nil
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return Value{}, errors.New("unsupported value type")
	}
	m := make(map[string]string, len(obj))
	for k, item := range obj {
		s, ok := scalarText(item)
		if !ok {
			return Value{}, fmt.Errorf("key %q: nested values must be strings", k)
		}
		m[k] = s
	}
	return Map(m), nil
}

func scalarText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		if x {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}
