package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
)

// Codec persists the whole record collection as one unit.
//
// Load treats missing storage and undecodable content the same way: it
// returns an empty collection and a nil error. Save replaces the stored
// collection so that a concurrent Load sees either the previous or the new
// content, never a partial write.
type Codec interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
}

// encodeCollection renders records the way the data file has always looked:
// a JSON array indented with two spaces. HTML characters are not escaped so
// stored strings are written back as they were read.
func encodeCollection(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// decodeCollection parses stored bytes. Blank content is an empty
// collection; anything that is not a JSON array of objects is reported as
// common.ErrCorruptState.
func decodeCollection(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptState, err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}
