package records

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
)

// Observer is told about every finished store operation.
type Observer func(op string, err error, elapsed time.Duration)

type Option func(*Store)

// WithClock replaces time.Now as the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithoutLocking drops the in-process serialization of load-modify-save
// cycles. Concurrent writers then race on the whole collection and the last
// save wins, which is how the original service behaved.
func WithoutLocking() Option {
	return func(s *Store) { s.mu = noLock{} }
}

// WithObserver registers a callback for operation metrics.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observe = o }
}

// Store runs every operation as a full load-modify-save cycle against the
// codec. There is no index and no cache: each call starts from what is
// currently persisted.
//
// Cycles are serialized with a mutex, so writers within one process cannot
// lose each other's changes. Writers in different processes sharing the
// same storage still can.
type Store struct {
	codec   Codec
	logger  logging.Logger
	now     func() time.Time
	mu      sync.Locker
	observe Observer
}

func NewStore(codec Codec, logger logging.Logger, opts ...Option) *Store {
	s := &Store{
		codec:   codec,
		logger:  logger.With("module", "record_store"),
		now:     time.Now,
		mu:      &sync.Mutex{},
		observe: func(string, error, time.Duration) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append stores a new record built from fields and returns it.
func (s *Store) Append(ctx context.Context, fields Patch) (rec Record, err error) {
	defer s.track("append", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return Record{}, err
	}

	rec = newRecord(fields, s.timestamp())
	records = append(records, rec)

	if err := s.save(ctx, records); err != nil {
		return Record{}, err
	}

	s.logger.Info(ctx, "record appended", "username", rec.Username, "records", len(records))
	return rec.Clone(), nil
}

// FindByUsername returns the first record with the given username.
func (s *Store) FindByUsername(ctx context.Context, username string) (rec Record, err error) {
	defer s.track("find_by_username", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return Record{}, err
	}

	i := indexByUsername(records, username)
	if i < 0 {
		return Record{}, fmt.Errorf("user %q: %w", username, common.ErrorNotFound)
	}
	return records[i], nil
}

// MergeUpdate merges patch into the first record with the given username,
// keeping its position in the collection. When no record matches nothing is
// written and common.ErrorNotFound is returned.
func (s *Store) MergeUpdate(ctx context.Context, username string, patch Patch) (rec Record, err error) {
	defer s.track("merge_update", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return Record{}, err
	}

	i := indexByUsername(records, username)
	if i < 0 {
		return Record{}, fmt.Errorf("user %q: %w", username, common.ErrorNotFound)
	}

	records[i] = Merge(records[i], patch, s.timestamp())

	if err := s.save(ctx, records); err != nil {
		return Record{}, err
	}

	s.logger.Info(ctx, "record updated", "username", username, "position", i)
	return records[i].Clone(), nil
}

// FindCredential returns the first record whose email and password both
// match exactly. Empty credentials never match.
func (s *Store) FindCredential(ctx context.Context, email, password string) (rec Record, err error) {
	defer s.track("find_credential", time.Now(), &err)

	if email == "" || password == "" {
		return Record{}, common.ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return Record{}, err
	}

	for _, r := range records {
		if r.Email == email && r.Password == password {
			return r, nil
		}
	}
	return Record{}, common.ErrInvalidCredentials
}

// Check loads the collection once and returns the number of records. The
// health endpoint uses it to report readiness.
func (s *Store) Check(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *Store) load(ctx context.Context) ([]Record, error) {
	records, err := s.codec.Load(ctx)
	if err != nil {
		s.logger.Error(ctx, "cannot load collection", "error", err.Error())
		return nil, fmt.Errorf("load collection: %w: %w", common.ErrStorage, err)
	}
	return records, nil
}

func (s *Store) save(ctx context.Context, records []Record) error {
	if err := s.codec.Save(ctx, records); err != nil {
		s.logger.Error(ctx, "cannot save collection", "error", err.Error())
		return fmt.Errorf("save collection: %w: %w", common.ErrStorage, err)
	}
	return nil
}

// timestamp is truncated to milliseconds, the precision records are stored with.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Store) track(op string, start time.Time, err *error) {
	s.observe(op, *err, time.Since(start))
}

func indexByUsername(records []Record, username string) int {
	if username == "" {
		return -1
	}
	for i, r := range records {
		if r.Username == username {
			return i
		}
	}
	return -1
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}
