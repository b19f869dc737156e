package records

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCodec_MissingFileIsEmpty(t *testing.T) {
	c := NewFileCodec(filepath.Join(t.TempDir(), "nope", "data.json"), logging.Nop{})

	got, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFileCodec_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "data.json")
	c := NewFileCodec(path, logging.Nop{})
	assert.Equal(t, path, c.Path())

	in := []Record{
		{Username: "alice", Profile: map[string]string{"Age Group": "2"}, SubmittedAt: t0},
		{Username: "bob", RiskBucket: "low", Extra: map[string]Value{"Income": String("3")}},
	}
	require.NoError(t, c.Save(ctx, in))

	out, err := c.Load(ctx)
	require.NoError(t, err)
	assertSameRecords(t, in, out)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "[\n  {\n"), "two-space indented array, got %q", raw)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestFileCodec_CorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"oops":`), 0o660))

	var logs bytes.Buffer
	c := NewFileCodec(path, logging.NewJSONLogger(&logs, slog.LevelDebug))

	got, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	backups := corruptBackups(t, path)
	require.Len(t, backups, 1)
	assert.Equal(t, `{"oops":`, backups[0])

	assert.Contains(t, logs.String(), `"level":"WARN"`)
	assert.Contains(t, logs.String(), "data file is corrupt")

	// the corrupt file itself is left alone until the next save
	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"oops":`, string(current))
}

func TestFileCodec_EmptyFileIsEmptyCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, nil, 0o660))

	got, err := NewFileCodec(path, logging.Nop{}).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Empty(t, corruptBackups(t, path), "an empty file is not corrupt")
}

func TestFileCodec_CorruptBackupsAreNotOverwritten(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")
	c := NewFileCodec(path, logging.Nop{})
	tick := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	require.NoError(t, os.WriteFile(path, []byte("first"), 0o660))
	_, err := c.Load(ctx)
	require.NoError(t, err)
	_, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, corruptBackups(t, path), "reloading the same bytes adds no backup")

	require.NoError(t, os.WriteFile(path, []byte("second"), 0o660))
	_, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, corruptBackups(t, path))
}

// corruptBackups returns the contents of the backups set aside for path,
// oldest first.
func corruptBackups(t *testing.T, path string) []string {
	t.Helper()
	matches, err := filepath.Glob(path + corruptSuffix + "*")
	require.NoError(t, err)
	sort.Strings(matches)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		require.NoError(t, err)
		out = append(out, string(b))
	}
	return out
}

func TestFileCodec_ReadErrorIsReturned(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFileCodec(dir, logging.Nop{}).Load(context.Background())
	require.Error(t, err)
}

func TestFileCodec_SaveErrorIsReturned(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := NewFileCodec(filepath.Join(blocker, "data.json"), logging.Nop{}).Save(context.Background(), nil)
	require.Error(t, err)
}
