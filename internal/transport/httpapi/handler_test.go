package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confesapp/backend/internal/auth"
	"confesapp/backend/internal/service/confessions"
	"confesapp/backend/internal/store/memory"
	"confesapp/backend/internal/transport/wire"
)

const base = "/api/v1/confession-bands"

// 2026-01-05 08:00 UTC, a Monday.
var now = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testAPI struct {
	t        *testing.T
	router   *gin.Engine
	verifier *auth.Verifier
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := func() time.Time { return now }
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := confessions.NewService(memory.New(memory.WithClock(clock)), confessions.WithClock(clock), confessions.WithLogger(log))
	verifier := auth.NewVerifier("test-secret", time.Hour)

	return &testAPI{
		t:        t,
		router:   NewRouter(NewHandler(svc, log, time.UTC), verifier, log),
		verifier: verifier,
	}
}

func (a *testAPI) token(id string, role auth.Role) string {
	a.t.Helper()
	tok, err := a.verifier.Issue(auth.Actor{ID: id, Role: role})
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (a *testAPI) createBand(token string, req wire.CreateBandRequest) wire.CreateBandResponse {
	a.t.Helper()
	code, env := a.do(http.MethodPost, base, token, req)
	require.Equal(a.t, http.StatusCreated, code, string(env.Data))
	var out wire.CreateBandResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &out))
	return out
}

func TestBookingFlow(t *testing.T) {
	api := newTestAPI(t)
	priest := api.token("priest-1", auth.RolePriest)
	alice := api.token("alice", auth.RoleFaithful)
	bob := api.token("bob", auth.RoleFaithful)

	created := api.createBand(priest, wire.CreateBandRequest{
		StartTime:   "2026-01-06T09:00:00Z",
		EndTime:     "2026-01-06T10:00:00Z",
		Location:    "Side chapel",
		MaxCapacity: 1,
	})
	assert.Equal(t, "available", created.Band.Status)
	bandID := created.Band.ID

	code, env := api.do(http.MethodGet, base+"/available", alice, nil)
	require.Equal(t, http.StatusOK, code)
	var bands []wire.Band
	require.NoError(t, json.Unmarshal(env.Data, &bands))
	require.Len(t, bands, 1)

	code, env = api.do(http.MethodPost, base+"/book", alice, wire.BookBandRequest{BandID: bandID, Notes: "first time"})
	require.Equal(t, http.StatusCreated, code, string(env.Data))
	var booking wire.Booking
	require.NoError(t, json.Unmarshal(env.Data, &booking))
	assert.Equal(t, "booked", booking.Status)
	assert.Equal(t, "alice", booking.FaithfulID)

	code, env = api.do(http.MethodPost, base+"/book", bob, wire.BookBandRequest{BandID: bandID})
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, CodeConflict, env.Error.Code)
	assert.Equal(t, "band is full", env.Error.Message)

	code, env = api.do(http.MethodGet, base+"/public/available", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &bands))
	assert.Empty(t, bands)

	code, env = api.do(http.MethodGet, base+"/my-bands/"+bandID, priest, nil)
	require.Equal(t, http.StatusOK, code)
	var band wire.Band
	require.NoError(t, json.Unmarshal(env.Data, &band))
	assert.Equal(t, "full", band.Status)
	assert.Equal(t, 1, band.CurrentBookings)
	require.Len(t, band.Bookings, 1)

	code, env = api.do(http.MethodDelete, base+"/my-bands/"+bandID, priest, nil)
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "band already has active bookings", env.Error.Message)

	code, env = api.do(http.MethodPatch, base+"/bookings/"+booking.ID+"/cancel", alice, nil)
	require.Equal(t, http.StatusOK, code)
	var cancelled wire.CancelBookingResponse
	require.NoError(t, json.Unmarshal(env.Data, &cancelled))
	assert.Equal(t, "booking cancelled", cancelled.Message)
	assert.Equal(t, "cancelled", cancelled.Booking.Status)

	code, env = api.do(http.MethodPatch, base+"/bookings/"+booking.ID+"/cancel", alice, nil)
	require.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, CodeNotFound, env.Error.Code)

	code, env = api.do(http.MethodGet, base+"/my-bookings", alice, nil)
	require.Equal(t, http.StatusOK, code)
	var bookings []wire.Booking
	require.NoError(t, json.Unmarshal(env.Data, &bookings))
	require.Len(t, bookings, 1)
	assert.Equal(t, "cancelled", bookings[0].Status)

	code, env = api.do(http.MethodPost, base+"/book", bob, wire.BookBandRequest{BandID: bandID})
	require.Equal(t, http.StatusCreated, code, string(env.Data))
	var rebooked wire.Booking
	require.NoError(t, json.Unmarshal(env.Data, &rebooked))

	code, _ = api.do(http.MethodPatch, base+"/bookings/"+rebooked.ID+"/cancel", bob, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = api.do(http.MethodDelete, base+"/my-bands/"+bandID, priest, nil)
	require.Equal(t, http.StatusOK, code, string(env.Data))
	var deleted wire.DeleteBandResponse
	require.NoError(t, json.Unmarshal(env.Data, &deleted))
	assert.Equal(t, "band deleted", deleted.Message)
	assert.Equal(t, bandID, deleted.ID)

	code, env = api.do(http.MethodGet, base+"/my-bands/"+bandID, priest, nil)
	require.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "band not found", env.Error.Message)
}

func TestCreateBand_WeeklyRecurrence(t *testing.T) {
	api := newTestAPI(t)
	priest := api.token("priest-1", auth.RolePriest)

	until := "2026-01-18"
	created := api.createBand(priest, wire.CreateBandRequest{
		StartTime:         "2026-01-05T17:00:00Z",
		EndTime:           "2026-01-05T18:00:00Z",
		IsRecurrent:       true,
		RecurrenceType:    "weekly",
		RecurrenceDays:    []int16{1, 3},
		RecurrenceEndDate: &until,
	})
	assert.Equal(t, 3, created.Instances)
	require.NotNil(t, created.Band.RecurrenceEndDate)
	assert.Equal(t, until, *created.Band.RecurrenceEndDate)

	code, env := api.do(http.MethodGet, base+"/my-bands?startDate=2026-01-05&endDate=2026-01-18", priest, nil)
	require.Equal(t, http.StatusOK, code)
	var bands []wire.Band
	require.NoError(t, json.Unmarshal(env.Data, &bands))
	assert.Len(t, bands, 4)
}

func TestCreateBand_Validation(t *testing.T) {
	api := newTestAPI(t)
	priest := api.token("priest-1", auth.RolePriest)

	cases := []struct {
		name string
		req  wire.CreateBandRequest
		msg  string
	}{
		{"missing start", wire.CreateBandRequest{EndTime: "2026-01-06T10:00:00Z"}, "startTime is required"},
		{"capacity", wire.CreateBandRequest{StartTime: "2026-01-06T09:00:00Z", EndTime: "2026-01-06T10:00:00Z", MaxCapacity: 60}, "maxCapacity must be at most 50"},
		{"bad timestamp", wire.CreateBandRequest{StartTime: "tomorrow", EndTime: "2026-01-06T10:00:00Z"}, "startTime must be an ISO-8601 date or timestamp"},
		{"inverted", wire.CreateBandRequest{StartTime: "2026-01-06T10:00:00Z", EndTime: "2026-01-06T09:00:00Z"}, "start_time must be before end_time"},
		{"past", wire.CreateBandRequest{StartTime: "2026-01-04T09:00:00Z", EndTime: "2026-01-04T10:00:00Z"}, "start_time must be in the future"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := api.do(http.MethodPost, base, priest, tc.req)
			require.Equal(t, http.StatusBadRequest, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, CodeValidation, env.Error.Code)
			assert.Equal(t, tc.msg, env.Error.Message)
		})
	}
}

func TestCreateBand_OverlapConflict(t *testing.T) {
	api := newTestAPI(t)
	priest := api.token("priest-1", auth.RolePriest)

	api.createBand(priest, wire.CreateBandRequest{StartTime: "2026-01-06T09:00:00Z", EndTime: "2026-01-06T10:00:00Z"})

	code, env := api.do(http.MethodPost, base, priest, wire.CreateBandRequest{StartTime: "2026-01-06T09:30:00Z", EndTime: "2026-01-06T10:30:00Z"})
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, CodeConflict, env.Error.Code)

	api.createBand(priest, wire.CreateBandRequest{StartTime: "2026-01-06T10:00:00Z", EndTime: "2026-01-06T11:00:00Z"})
}

func TestAuthorization(t *testing.T) {
	api := newTestAPI(t)
	priest := api.token("priest-1", auth.RolePriest)
	alice := api.token("alice", auth.RoleFaithful)

	code, env := api.do(http.MethodGet, base+"/my-bands", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, CodeUnauthorized, env.Error.Code)

	code, _ = api.do(http.MethodGet, base+"/my-bands", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = api.do(http.MethodGet, base+"/my-bands", alice, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, CodeForbidden, env.Error.Code)

	code, _ = api.do(http.MethodPost, base+"/book", priest, wire.BookBandRequest{})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestBandScopedToOwner(t *testing.T) {
	api := newTestAPI(t)
	owner := api.token("priest-1", auth.RolePriest)
	other := api.token("priest-2", auth.RolePriest)

	created := api.createBand(owner, wire.CreateBandRequest{StartTime: "2026-01-06T09:00:00Z", EndTime: "2026-01-06T10:00:00Z"})

	code, env := api.do(http.MethodGet, base+"/my-bands/"+created.Band.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "band not found", env.Error.Message)

	code, env = api.do(http.MethodGet, base+"/my-bands/not-a-uuid", owner, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "id must be a UUID", env.Error.Message)
}

func TestSetBandStatus(t *testing.T) {
	api := newTestAPI(t)
	priest := api.token("priest-1", auth.RolePriest)
	created := api.createBand(priest, wire.CreateBandRequest{StartTime: "2026-01-06T09:00:00Z", EndTime: "2026-01-06T10:00:00Z"})

	code, env := api.do(http.MethodPatch, base+"/my-bands/"+created.Band.ID+"/status", priest, wire.SetBandStatusRequest{Status: "full"})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, CodeValidation, env.Error.Code)

	code, env = api.do(http.MethodPatch, base+"/my-bands/"+created.Band.ID+"/status", priest, wire.SetBandStatusRequest{Status: "cancelled"})
	require.Equal(t, http.StatusOK, code)
	var band wire.Band
	require.NoError(t, json.Unmarshal(env.Data, &band))
	assert.Equal(t, "cancelled", band.Status)
}

func TestUpdateBand_MalformedBody(t *testing.T) {
	api := newTestAPI(t)
	priest := api.token("priest-1", auth.RolePriest)
	created := api.createBand(priest, wire.CreateBandRequest{StartTime: "2026-01-06T09:00:00Z", EndTime: "2026-01-06T10:00:00Z"})

	req := httptest.NewRequest(http.MethodPatch, base+"/my-bands/"+created.Band.ID, bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+priest)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")

	location := "Main nave"
	code, env := api.do(http.MethodPatch, base+"/my-bands/"+created.Band.ID, priest, wire.UpdateBandRequest{Location: &location})
	require.Equal(t, http.StatusOK, code)
	var band wire.Band
	require.NoError(t, json.Unmarshal(env.Data, &band))
	assert.Equal(t, location, band.Location)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(slog.New(slog.NewTextHandler(io.Discard, nil))))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), CodeInternal)
}
