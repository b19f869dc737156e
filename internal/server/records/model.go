// Package records implements the profile record store: the record model, the
// patch merge rules, the collection codecs (file, PostgreSQL, S3) and the
// Store that runs load-modify-save cycles over a codec.
package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"time"
)

// Well-known top-level keys of a persisted record.
const (
	KeyEmail       = "email"
	KeyPassword    = "password"
	KeyUsername    = "username"
	KeyRiskBucket  = "riskBucket"
	KeyProfile     = "profile"
	KeySubmittedAt = "submittedAt"
	KeyUpdatedAt   = "updatedAt"

	// legacyKeyRiskBucket is what the web front end and the advisor service
	// send. Patches rename it to KeyRiskBucket; stored records keep it as is
	// and RiskBucket falls back to it when KeyRiskBucket is absent.
	legacyKeyRiskBucket = "risk_bucket"
)

type valueKind uint8

const (
	kindString valueKind = iota
	kindMap
	kindRaw
)

// Value is the value of a top-level record field that is not one of the
// well-known keys. Clients may only produce strings and one-level string
// maps; kindRaw exists so values written by other tools survive a
// load/save cycle unchanged.
type Value struct {
	kind valueKind
	str  string
	m    map[string]string
	raw  json.RawMessage
}

// String returns a string Value.
func String(s string) Value { return Value{kind: kindString, str: s} }

// Map returns a map Value holding a copy of m.
func Map(m map[string]string) Value { return Value{kind: kindMap, m: maps.Clone(m)} }

// IsMap reports whether v holds a string map.
func (v Value) IsMap() bool { return v.kind == kindMap }

// Str returns the string content, or "" for non-string values.
func (v Value) Str() string {
	if v.kind != kindString {
		return ""
	}
	return v.str
}

// StrMap returns a copy of the map content, or nil for non-map values.
func (v Value) StrMap() map[string]string {
	if v.kind != kindMap {
		return nil
	}
	return maps.Clone(v.m)
}

func (v Value) clone() Value {
	switch v.kind {
	case kindMap:
		return Map(v.m)
	case kindRaw:
		return Value{kind: kindRaw, raw: bytes.Clone(v.raw)}
	default:
		return v
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return encodeJSON(v.m)
	case kindRaw:
		return v.raw, nil
	default:
		return encodeJSON(v.str)
	}
}

// UnmarshalJSON never fails on valid JSON: anything that is not a string or
// a flat object of strings is kept verbatim as a raw value.
func (v *Value) UnmarshalJSON(b []byte) error {
	if s, ok := jsonString(b); ok {
		*v = String(s)
		return nil
	}
	if m, ok := stringObject(b); ok {
		*v = Value{kind: kindMap, m: m}
		return nil
	}
	*v = Value{kind: kindRaw, raw: bytes.Clone(b)}
	return nil
}

// Record is one user's persisted credentials, profile answers and derived
// risk bucket. Any field may be empty until filled in by an update.
//
// A record read from storage remembers the bytes it was read from. Marshal
// writes those bytes back for every field whose value has not changed since,
// in the stored key order, so saving a collection only rewrites what was
// actually modified.
type Record struct {
	Email       string
	Password    string
	Username    string
	RiskBucket  string
	Profile     map[string]string
	SubmittedAt time.Time
	UpdatedAt   time.Time

	// Extra holds the remaining top-level fields (raw form fields).
	Extra map[string]Value

	// foreign holds profile answers that are not strings.
	foreign map[string]json.RawMessage
	// assigned marks well-known string fields that were given a value,
	// possibly "", and must therefore be written.
	assigned uint8
	src      *source
}

// source is the stored form of a record. It is never modified after
// decoding and is shared between clones.
type source struct {
	order []string
	raw   map[string]json.RawMessage
	base  Record
}

func assignedBit(key string) uint8 {
	switch key {
	case KeyEmail:
		return 1 << 0
	case KeyPassword:
		return 1 << 1
	case KeyUsername:
		return 1 << 2
	case KeyRiskBucket:
		return 1 << 3
	}
	return 0
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	out.Profile = maps.Clone(r.Profile)
	out.foreign = maps.Clone(r.foreign)
	if r.Extra != nil {
		out.Extra = make(map[string]Value, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v.clone()
		}
	}
	return out
}

func (r Record) MarshalJSON() ([]byte, error) {
	var (
		base  Record
		order []string
		raw   map[string]json.RawMessage
	)
	if r.src != nil {
		base, order, raw = r.src.base, r.src.order, r.src.raw
	}

	keys := map[string]struct{}{
		KeyEmail: {}, KeyPassword: {}, KeyUsername: {}, KeyRiskBucket: {},
		KeyProfile: {}, KeySubmittedAt: {}, KeyUpdatedAt: {},
	}
	for k := range r.Extra {
		keys[k] = struct{}{}
	}
	for k := range raw {
		keys[k] = struct{}{}
	}

	fields := make(map[string]json.RawMessage, len(keys))
	for key := range keys {
		cur, ok, err := r.encodeField(key)
		if err != nil {
			return nil, err
		}
		prev, prevOK, err := base.encodeField(key)
		if err != nil {
			return nil, err
		}
		bit := assignedBit(key)
		if ok == prevOK && bytes.Equal(cur, prev) && r.assigned&bit == base.assigned&bit {
			if stored, found := raw[key]; found {
				fields[key] = stored
			}
			continue
		}
		if ok {
			fields[key] = cur
		}
	}

	out := make([]string, 0, len(fields))
	for _, key := range order {
		if _, ok := fields[key]; ok {
			out = append(out, key)
		}
	}
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		if _, stored := raw[key]; !stored {
			out = append(out, key)
		}
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range out {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := encodeJSON(key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(fields[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeField renders the current value stored under key and reports
// whether the key is present at all.
func (r *Record) encodeField(key string) (json.RawMessage, bool, error) {
	switch key {
	case KeySubmittedAt, KeyUpdatedAt:
		t := r.SubmittedAt
		if key == KeyUpdatedAt {
			t = r.UpdatedAt
		}
		if !t.IsZero() {
			b, err := encodeJSON(formatTime(t))
			return b, true, err
		}
	case KeyProfile:
		if r.Profile != nil || r.foreign != nil {
			answers := make(map[string]json.RawMessage, len(r.Profile)+len(r.foreign))
			maps.Copy(answers, r.foreign)
			for k, v := range r.Profile {
				b, err := encodeJSON(v)
				if err != nil {
					return nil, false, err
				}
				answers[k] = b
			}
			b, err := encodeJSON(answers)
			return b, true, err
		}
	default:
		if p := r.stringField(key); p != nil && (*p != "" || r.assigned&assignedBit(key) != 0) {
			b, err := encodeJSON(*p)
			return b, true, err
		}
	}

	v, ok := r.Extra[key]
	if !ok {
		return nil, false, nil
	}
	b, err := v.MarshalJSON()
	return b, true, err
}

func (r *Record) UnmarshalJSON(b []byte) error {
	order, fields, err := decodeObject(b)
	if err != nil {
		return err
	}

	rec := Record{}
	for _, key := range order {
		rec.decodeField(key, fields[key])
	}
	if _, ok := fields[KeyRiskBucket]; !ok {
		if v, ok := rec.Extra[legacyKeyRiskBucket]; ok && v.kind == kindString {
			rec.RiskBucket = v.str
		}
	}

	rec.src = &source{order: order, raw: fields, base: rec.Clone()}
	*r = rec
	return nil
}

func (r *Record) decodeField(key string, raw json.RawMessage) {
	switch key {
	case KeySubmittedAt:
		r.SubmittedAt = parseTime(raw)
		return
	case KeyUpdatedAt:
		r.UpdatedAt = parseTime(raw)
		return
	case KeyProfile:
		if r.decodeProfile(raw) {
			return
		}
	}

	var v Value
	_ = v.UnmarshalJSON(raw)
	if !r.setKnown(key, v) {
		if r.Extra == nil {
			r.Extra = make(map[string]Value)
		}
		r.Extra[key] = v
	}
}

// decodeProfile splits a stored profile object into string answers and
// foreign ones. It reports false when raw is not an object.
func (r *Record) decodeProfile(raw json.RawMessage) bool {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return false
	}
	r.Profile = make(map[string]string, len(entries))
	for k, v := range entries {
		if s, ok := jsonString(v); ok {
			r.Profile[k] = s
			continue
		}
		if r.foreign == nil {
			r.foreign = make(map[string]json.RawMessage)
		}
		r.foreign[k] = v
	}
	return true
}

// setKnown assigns a string v to the well-known string field key and
// reports whether it did. A well-known key holding any other kind of value
// is kept in Extra so that nothing read from storage is dropped.
func (r *Record) setKnown(key string, v Value) bool {
	p := r.stringField(key)
	if p == nil || v.kind != kindString {
		return false
	}
	*p = v.str
	r.assigned |= assignedBit(key)
	return true
}

func (r *Record) stringField(key string) *string {
	switch key {
	case KeyEmail:
		return &r.Email
	case KeyPassword:
		return &r.Password
	case KeyUsername:
		return &r.Username
	case KeyRiskBucket:
		return &r.RiskBucket
	}
	return nil
}

// decodeObject reads the members of a JSON object keeping their order and
// their exact bytes. For a repeated key the last value wins.
func decodeObject(b []byte) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("record is not an object")
	}

	var order []string
	fields := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		if _, seen := fields[key]; !seen {
			order = append(order, key)
		}
		fields[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return order, fields, nil
}

func jsonString(b []byte) (string, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return "", false
	}
	return s, true
}

// stringObject decodes b when it is an object whose members are all
// strings. A null member disqualifies it.
func stringObject(b []byte) (map[string]string, bool) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(b, &entries); err != nil || entries == nil {
		return nil, false
	}
	m := make(map[string]string, len(entries))
	for k, v := range entries {
		s, ok := jsonString(v)
		if !ok {
			return nil, false
		}
		m[k] = s
	}
	return m, true
}

// encodeJSON is json.Marshal without HTML escaping, matching how the data
// file is written.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// parseTime returns the zero time for anything that is not an RFC 3339
// string; the stored bytes are still written back unchanged.
func parseTime(raw json.RawMessage) time.Time {
	s, ok := jsonString(raw)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
