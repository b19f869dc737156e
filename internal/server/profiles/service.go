// Package profiles implements the profile operations behind the HTTP
// gateway: creating a submission, logging in, merging an update, and the
// two advisor round trips (classification and recommendations).
package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/server/advisor"
	"github.com/dmitrijs2005/profilekeeper/internal/server/records"
)

// RecordStore is satisfied by *records.Store.
type RecordStore interface {
	Append(ctx context.Context, fields records.Patch) (records.Record, error)
	FindByUsername(ctx context.Context, username string) (records.Record, error)
	MergeUpdate(ctx context.Context, username string, patch records.Patch) (records.Record, error)
	FindCredential(ctx context.Context, email, password string) (records.Record, error)
}

// Advisor is satisfied by *advisor.Client.
type Advisor interface {
	Predict(ctx context.Context, profile map[string]string) (string, error)
	Dashboard(ctx context.Context, bucket string) (advisor.Dashboard, error)
}

type Service struct {
	store   RecordStore
	advisor Advisor
	logger  logging.Logger
}

func NewService(store RecordStore, adv Advisor, logger logging.Logger) *Service {
	return &Service{store: store, advisor: adv, logger: logger.With("module", "profiles")}
}

// Create appends a new submission. The fields are stored as given apart from
// the server-managed timestamps.
func (s *Service) Create(ctx context.Context, fields records.Patch) (records.Record, error) {
	return s.store.Append(ctx, fields)
}

// Login returns the first record holding exactly this email and password.
// A mismatch is common.ErrInvalidCredentials whichever field was wrong.
func (s *Service) Login(ctx context.Context, email, password string) (records.Record, error) {
	rec, err := s.store.FindCredential(ctx, email, password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			s.logger.Info(ctx, "login rejected")
		}
		return records.Record{}, err
	}
	return rec, nil
}

// Update merges patch into the record named by the patch's own username. The
// patch must carry a username and a profile object.
func (s *Service) Update(ctx context.Context, patch records.Patch) (records.Record, error) {
	username := patch.Str(records.KeyUsername)
	if _, ok := patch.Profile(); username == "" || !ok {
		return records.Record{}, fmt.Errorf("%w: missing username or profile", common.ErrBadRequest)
	}
	return s.store.MergeUpdate(ctx, username, patch)
}

// Classify sends the stored profile answers to the advisor and stores the
// returned risk bucket on the record.
func (s *Service) Classify(ctx context.Context, username string) (records.Record, error) {
	rec, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return records.Record{}, err
	}
	if len(rec.Profile) == 0 {
		return records.Record{}, fmt.Errorf("%w: user %q has no profile answers", common.ErrBadRequest, username)
	}

	bucket, err := s.advisor.Predict(ctx, rec.Profile)
	if err != nil {
		return records.Record{}, upstream(err)
	}

	updated, err := s.store.MergeUpdate(ctx, username, records.Patch{records.KeyRiskBucket: records.String(bucket)})
	if err != nil {
		return records.Record{}, err
	}

	s.logger.Info(ctx, "risk bucket assigned", "username", username, "risk_bucket", bucket)
	return updated, nil
}

// Recommendations asks the advisor for the picks matching the user's stored
// risk bucket. A user without a bucket gets common.ErrNoBucket.
func (s *Service) Recommendations(ctx context.Context, username string) (advisor.Dashboard, error) {
	rec, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return advisor.Dashboard{}, err
	}
	if rec.RiskBucket == "" {
		return advisor.Dashboard{}, fmt.Errorf("user %q: %w", username, common.ErrNoBucket)
	}

	d, err := s.advisor.Dashboard(ctx, rec.RiskBucket)
	if err != nil {
		return advisor.Dashboard{}, upstream(err)
	}
	return d, nil
}

func upstream(err error) error {
	if errors.Is(err, common.ErrUpstream) {
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrUpstream, err)
}
