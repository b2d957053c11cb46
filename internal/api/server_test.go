package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canflyzhou/Stewart-Platform/internal/bridge"
	"github.com/canflyzhou/Stewart-Platform/internal/db"
	"github.com/canflyzhou/Stewart-Platform/internal/kinematics"
	"github.com/canflyzhou/Stewart-Platform/internal/serialmux"
	"github.com/canflyzhou/Stewart-Platform/internal/testutil"
)

func newTestServer(t *testing.T) (*Server, *serialmux.DisabledSerialMux, *db.DB) {
	t.Helper()
	d, err := db.NewDB(testutil.TempDBPath(t))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	mux := serialmux.NewDisabledSerialMux()
	state := func() bridge.State {
		return bridge.State{SessionID: "test-session", Transmissions: 7}
	}
	return NewServer(mux, d, state), mux, d
}

func TestShowState(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got bridge.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "test-session", got.SessionID)
	assert.Equal(t, uint64(7), got.Transmissions)
}

func TestListTransmissions(t *testing.T) {
	s, _, d := newTestServer(t)

	require.NoError(t, d.StartSession("sess"))
	lengths := [kinematics.NumActuators]float64{1, 2, 3, 4, 5, 6}
	require.NoError(t, d.RecordTransmission("sess", "<1,2,3,4,5,6>", lengths))
	require.NoError(t, d.RecordTransmission("sess", "<6,5,4,3,2,1>", lengths))

	req := httptest.NewRequest(http.MethodGet, "/api/transmissions?limit=1", nil)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []db.Transmission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "<6,5,4,3,2,1>", got[0].Frame)
}

func TestListTransmissionsBadLimit(t *testing.T) {
	s, _, _ := newTestServer(t)

	for _, limit := range []string{"zero", "0", "-5"} {
		req := httptest.NewRequest(http.MethodGet, "/api/transmissions?limit="+limit, nil)
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestShowStats(t *testing.T) {
	s, _, d := newTestServer(t)

	require.NoError(t, d.StartSession("sess"))

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got db.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.Sessions)
}

func TestSendFrame(t *testing.T) {
	s, mux, _ := newTestServer(t)

	form := url.Values{"frame": {"<0,0,0,0,0,0>"}}
	req := httptest.NewRequest(http.MethodPost, "/api/frame", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"<0,0,0,0,0,0>"}, mux.Frames)
}

func TestSendFrameRejectsGetAndEmpty(t *testing.T) {
	s, mux, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/frame", nil)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/frame", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, mux.Frames)
}

func TestHomeHandler(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
