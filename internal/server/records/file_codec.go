package records

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/profilekeeper/internal/filex"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
)

// corruptSuffix followed by a UTC timestamp is appended to the data file
// name when an undecodable file is set aside before the collection is
// treated as empty.
const (
	corruptSuffix = ".corrupt-"
	corruptStamp  = "20060102T150405.000000000Z"
)

// FileCodec keeps the collection in a single JSON file.
type FileCodec struct {
	path   string
	logger logging.Logger
	now    func() time.Time
}

func NewFileCodec(path string, logger logging.Logger) *FileCodec {
	return &FileCodec{path: path, logger: logger.With("module", "file_codec"), now: time.Now}
}

// Path returns the data file location.
func (c *FileCodec) Path() string { return c.path }

// Load reads the data file. A missing file yields an empty collection. So
// does a corrupt one, after its bytes have been copied to
// <path>.corrupt-<timestamp> and a warning logged. Any other read error is
// returned.
func (c *FileCodec) Load(ctx context.Context) ([]Record, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", c.path, err)
	}

	records, err := decodeCollection(data)
	if err != nil {
		backup, cerr := c.preserve(data)
		if cerr != nil {
			c.logger.Error(ctx, "cannot preserve corrupt data file", "path", c.path, "error", cerr.Error())
		}
		c.logger.Warn(ctx, "data file is corrupt, starting from an empty collection",
			"path", c.path, "backup", backup, "size", len(data), "error", err.Error())
		return []Record{}, nil
	}

	return records, nil
}

// preserve copies the corrupt data file next to it unless an earlier backup
// already holds the same bytes, and returns the backup path.
func (c *FileCodec) preserve(data []byte) (string, error) {
	dir, name := filepath.Split(c.path)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), name+corruptSuffix) {
			continue
		}
		existing := filepath.Join(dir, e.Name())
		if b, err := os.ReadFile(existing); err == nil && bytes.Equal(b, data) {
			return existing, nil
		}
	}

	backup := c.path + corruptSuffix + c.now().UTC().Format(corruptStamp)
	return backup, filex.CopyFile(c.path, backup)
}

// Save writes the collection through a temp file and rename; the data
// directory is created when missing.
func (c *FileCodec) Save(ctx context.Context, records []Record) error {
	data, err := encodeCollection(records)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(c.path, data, 0o660); err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	return nil
}
