package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/listing-scout/internal/domain"
	"github.com/spigell/listing-scout/internal/filtering"
	"github.com/spigell/listing-scout/internal/traversal"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeApplications struct {
	apps []domain.Application
	err  error
	user string
}

func (f *fakeApplications) ListApplications(_ context.Context, userID string) ([]domain.Application, error) {
	f.user = userID
	return f.apps, f.err
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	h.ServeHTTP(rec, req)
	return rec
}

func TestSignalRoutesEnqueue(t *testing.T) {
	ctl := traversal.NewControl(10 * time.Millisecond)
	r := NewRouter(Config{}, Deps{Control: ctl})

	ctl.Send(traversal.SignalStart)
	require.NoError(t, ctl.Checkpoint(context.Background()))

	rec := do(t, r, http.MethodPost, "/pause")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp SignalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, traversal.SignalPause, resp.Requested)
	assert.Equal(t, traversal.StateRunning, resp.State, "applied only at the next checkpoint")
	assert.Equal(t, 1, ctl.Pending())

	do(t, r, http.MethodPost, "/stop")
	assert.ErrorIs(t, ctl.Checkpoint(context.Background()), traversal.ErrStopped)
	assert.Equal(t, traversal.StateStopped, ctl.State())
}

func TestToggleAndResume(t *testing.T) {
	ctl := traversal.NewControl(10 * time.Millisecond)
	r := NewRouter(Config{}, Deps{Control: ctl})
	ctl.Send(traversal.SignalStart)

	do(t, r, http.MethodPost, "/toggle")
	do(t, r, http.MethodPost, "/resume")
	require.NoError(t, ctl.Checkpoint(context.Background()))
	assert.Equal(t, traversal.StateRunning, ctl.State())
}

func TestStatus(t *testing.T) {
	ctl := traversal.NewControl(10 * time.Millisecond)
	filters, err := filtering.New(&filtering.Config{Disabled: []string{"relevance_description"}}, filtering.Deps{}, filtering.Default())
	require.NoError(t, err)

	r := NewRouter(Config{}, Deps{
		Control: ctl,
		UserID:  func() string { return "user-1" },
		Filters: filters,
	})

	rec := do(t, r, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, traversal.StateIdle, resp.State)
	assert.Equal(t, "user-1", resp.UserID)
	require.Len(t, resp.Filters, 4)
	assert.Equal(t, "relevance_description", resp.Filters[3].Name)
	assert.False(t, resp.Filters[3].Enabled)
}

func TestApplications(t *testing.T) {
	score := 72.0
	store := &fakeApplications{apps: []domain.Application{{JobURL: "https://x/jobs/1", Status: domain.ApplicationSubmitted, MatchScore: &score}}}
	userID := ""
	r := NewRouter(Config{}, Deps{
		Control:      traversal.NewControl(0),
		Applications: store,
		UserID:       func() string { return userID },
	})

	rec := do(t, r, http.MethodGet, "/applications")
	assert.Equal(t, http.StatusConflict, rec.Code)

	userID = "user-1"
	rec = do(t, r, http.MethodGet, "/applications")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", store.user)
	assert.Contains(t, rec.Body.String(), `"job_url":"https://x/jobs/1"`)
	assert.Contains(t, rec.Body.String(), `"match_score":72`)

	store.err = errors.New("boom")
	rec = do(t, r, http.MethodGet, "/applications")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := NewRouter(Config{}, Deps{Control: traversal.NewControl(0)})

	rec := do(t, r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "listing_scout_run_state"))
}

func TestCORS(t *testing.T) {
	r := NewRouter(Config{AllowedOrigins: []string{"https://dash.test"}}, Deps{Control: traversal.NewControl(0)})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "https://dash.test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "https://dash.test", rec.Header().Get("Access-Control-Allow-Origin"))
}
