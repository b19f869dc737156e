package records

import (
	"maps"
	"time"
)

// Merge returns existing with patch applied and UpdatedAt set to now.
//
// Top-level fields are replaced shallowly. The profile is merged one level
// deep: answers present in the patch overwrite, answers missing from it are
// kept, including stored answers that are not strings. A well-known field
// set to "" is kept as an empty value. Nothing can be deleted through a
// patch. Neither input is modified and the result shares no maps with them.
func Merge(existing Record, patch Patch, now time.Time) Record {
	out := existing.Clone()
	out.apply(patch)
	out.UpdatedAt = now
	return out
}

// newRecord builds a record from the fields of a create request.
func newRecord(fields Patch, now time.Time) Record {
	var rec Record
	rec.apply(fields)
	rec.SubmittedAt = now
	return rec
}

func (r *Record) apply(p Patch) {
	for key, v := range p {
		switch key {
		case KeySubmittedAt, KeyUpdatedAt:
			continue
		case KeyProfile:
			if v.IsMap() {
				if r.Profile == nil {
					r.Profile = make(map[string]string, len(v.m))
				}
				maps.Copy(r.Profile, v.m)
				for k := range v.m {
					delete(r.foreign, k)
				}
				delete(r.Extra, key)
				continue
			}
		}

		v = v.clone()
		if r.setKnown(key, v) {
			delete(r.Extra, key)
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]Value)
		}
		r.Extra[key] = v
	}
}
