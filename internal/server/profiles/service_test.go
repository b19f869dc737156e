package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/server/advisor"
	"github.com/dmitrijs2005/profilekeeper/internal/server/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdvisor struct {
	bucket     string
	predictErr error
	gotProfile map[string]string

	dashboard    advisor.Dashboard
	dashboardErr error
	gotBucket    string
}

func (f *fakeAdvisor) Predict(_ context.Context, profile map[string]string) (string, error) {
	f.gotProfile = profile
	return f.bucket, f.predictErr
}

func (f *fakeAdvisor) Dashboard(_ context.Context, bucket string) (advisor.Dashboard, error) {
	f.gotBucket = bucket
	return f.dashboard, f.dashboardErr
}

func newService(t *testing.T, adv Advisor) (*Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "data.json")
	store := records.NewStore(records.NewFileCodec(path, logging.Nop{}), logging.Nop{})
	return NewService(store, adv, logging.Nop{}), path
}

func patch(t *testing.T, body string) records.Patch {
	t.Helper()
	p, err := records.DecodePatch([]byte(body))
	require.NoError(t, err)
	return p
}

func TestCreateLoginUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, &fakeAdvisor{})

	_, err := svc.Create(ctx, patch(t, `{"email":"a@x","password":"p","username":"alice","profile":{"Age Group":"2"}}`))
	require.NoError(t, err)

	rec, err := svc.Login(ctx, "a@x", "p")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Username)
	assert.Empty(t, rec.RiskBucket)

	_, err = svc.Update(ctx, patch(t, `{"username":"alice","profile":{"Marital Status":"1"}}`))
	require.NoError(t, err)

	rec, err = svc.Login(ctx, "a@x", "p")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Age Group": "2", "Marital Status": "1"}, rec.Profile)
	assert.False(t, rec.UpdatedAt.IsZero())
}

func TestLogin_WrongPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, &fakeAdvisor{})

	_, err := svc.Create(ctx, patch(t, `{"email":"a@x","password":"p","username":"alice"}`))
	require.NoError(t, err)

	rec, err := svc.Login(ctx, "a@x", "wrong")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Empty(t, rec.Username)
}

func TestUpdate_Validation(t *testing.T) {
	ctx := context.Background()
	svc, path := newService(t, &fakeAdvisor{})

	_, err := svc.Create(ctx, patch(t, `{"username":"alice","profile":{}}`))
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "missing username", body: `{"profile":{"a":"1"}}`, want: common.ErrBadRequest},
		{name: "empty username", body: `{"username":"","profile":{"a":"1"}}`, want: common.ErrBadRequest},
		{name: "missing profile", body: `{"username":"alice"}`, want: common.ErrBadRequest},
		{name: "unknown user", body: `{"username":"bob","profile":{"a":"1"}}`, want: common.ErrorNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, patch(t, tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	adv := &fakeAdvisor{bucket: "Moderate"}
	svc, _ := newService(t, adv)

	_, err := svc.Create(ctx, patch(t, `{"username":"alice","profile":{"Age Group":"2","Homeownership":"1"}}`))
	require.NoError(t, err)

	rec, err := svc.Classify(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Moderate", rec.RiskBucket)
	assert.Equal(t, map[string]string{"Age Group": "2", "Homeownership": "1"}, adv.gotProfile)
	assert.Equal(t, map[string]string{"Age Group": "2", "Homeownership": "1"}, rec.Profile)
}

func TestClassify_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		svc, _ := newService(t, &fakeAdvisor{bucket: "Low"})
		_, err := svc.Classify(ctx, "ghost")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("no profile", func(t *testing.T) {
		svc, _ := newService(t, &fakeAdvisor{bucket: "Low"})
		_, err := svc.Create(ctx, patch(t, `{"username":"alice"}`))
		require.NoError(t, err)

		_, err = svc.Classify(ctx, "alice")
		assert.ErrorIs(t, err, common.ErrBadRequest)
	})

	t.Run("advisor down", func(t *testing.T) {
		svc, _ := newService(t, &fakeAdvisor{predictErr: errors.New("connection refused")})
		_, err := svc.Create(ctx, patch(t, `{"username":"alice","profile":{"a":"1"}}`))
		require.NoError(t, err)

		_, err = svc.Classify(ctx, "alice")
		assert.ErrorIs(t, err, common.ErrUpstream)

		rec, err := svc.store.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, rec.RiskBucket)
	})
}

func TestRecommendations(t *testing.T) {
	ctx := context.Background()
	adv := &fakeAdvisor{dashboard: advisor.Dashboard{Bucket: "Low", Picks: json.RawMessage(`[{"ticker":"AAA"}]`)}}
	svc, _ := newService(t, adv)

	_, err := svc.Create(ctx, patch(t, `{"username":"alice","risk_bucket":"Low"}`))
	require.NoError(t, err)
	_, err = svc.Create(ctx, patch(t, `{"username":"bob"}`))
	require.NoError(t, err)

	d, err := svc.Recommendations(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Low", adv.gotBucket)
	assert.Equal(t, "Low", d.Bucket)
	assert.JSONEq(t, `[{"ticker":"AAA"}]`, string(d.Picks))

	_, err = svc.Recommendations(ctx, "bob")
	assert.ErrorIs(t, err, common.ErrNoBucket)

	_, err = svc.Recommendations(ctx, "carol")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	adv.dashboardErr = errors.New("boom")
	_, err = svc.Recommendations(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrUpstream)
}
