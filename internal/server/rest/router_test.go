package rest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/logging"
	"github.com/dmitrijs2005/dropbox/internal/server/auth"
	"github.com/dmitrijs2005/dropbox/internal/server/mediastore"
	"github.com/dmitrijs2005/dropbox/internal/server/metrics"
	"github.com/dmitrijs2005/dropbox/internal/server/models"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/memory"
	"github.com/dmitrijs2005/dropbox/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	repos  *memory.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	media, err := mediastore.OpenBolt(filepath.Join(t.TempDir(), "media.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = media.Close() })

	repos := memory.NewManager()
	db := repos.DB()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	l := logging.Nop()

	h := NewHandler(
		services.NewPairingService(db, repos, repos, m, l, 10*time.Minute),
		services.NewMailboxService(db, repos, m, l),
		services.NewCaptureService(db, repos, media, m, l, 2*time.Minute, time.Minute),
		auth.NewGate(db, repos),
		1024,
	)
	return &testServer{t: t, router: NewRouter(h, l, m, reg), repos: repos}
}

func (s *testServer) do(method, path, key string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(method, path, key string, in any) *httptest.ResponseRecorder {
	s.t.Helper()
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		require.NoError(s.t, err)
		body = bytes.NewReader(raw)
	}
	return s.do(method, path, key, body, map[string]string{"Content-Type": "application/json"})
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) channel() createChannelResponse {
	s.t.Helper()
	w := s.doJSON(http.MethodPost, "/channels", "", nil)
	require.Equal(s.t, http.StatusCreated, w.Code)
	return decode[createChannelResponse](s.t, w)
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

func TestStatusFor(t *testing.T) {
	s := newTestServer(t)
	agent := s.channel()

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		body   any
		want   int
	}{
		{name: "missing key", method: http.MethodGet, path: "/messages", want: http.StatusUnauthorized},
		{name: "bad key", method: http.MethodGet, path: "/messages", key: "sk-nope", want: http.StatusUnauthorized},
		{name: "bad since", method: http.MethodGet, path: "/messages?since=yesterday", key: agent.APIKey, want: http.StatusBadRequest},
		{name: "missing fields", method: http.MethodPost, path: "/messages", key: agent.APIKey, body: map[string]string{"sender": "a"}, want: http.StatusBadRequest},
		{name: "bad base64", method: http.MethodPost, path: "/messages", key: agent.APIKey, body: map[string]string{"sender": "a", "body": "%%%", "nonce": "AA=="}, want: http.StatusBadRequest},
		{name: "unknown message", method: http.MethodDelete, path: "/messages/nope", key: agent.APIKey, want: http.StatusNotFound},
		{name: "unknown code", method: http.MethodPost, path: "/pair", body: map[string]string{"code": "000000"}, want: http.StatusNotFound},
		{name: "empty code", method: http.MethodPost, path: "/pair", body: map[string]string{}, want: http.StatusBadRequest},
		{name: "wrong channel", method: http.MethodPost, path: "/channels/other/pair", key: agent.APIKey, body: map[string]string{}, want: http.StatusForbidden},
		{name: "missing channel key", method: http.MethodPost, path: "/channels/" + agent.ChannelID + "/pair", key: agent.APIKey, body: map[string]string{}, want: http.StatusBadRequest},
		{name: "finalize without credentials", method: http.MethodPost, path: "/api/capture/sessions/x/finalize", want: http.StatusUnauthorized},
		{name: "finalize with bad token", method: http.MethodPost, path: "/api/capture/sessions/x/finalize?token=abc", want: http.StatusForbidden},
		{name: "unknown route", method: http.MethodGet, path: "/nope", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.doJSON(tt.method, tt.path, tt.key, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, errorOf(t, w))
		})
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodOptions, "/api/capture/sessions/x/upload", "", nil, map[string]string{
		"Origin":                        "https://capture.example",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), HeaderStartedAt)

	w = s.do(http.MethodGet, "/messages", "", nil, nil)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPairingFlow(t *testing.T) {
	s := newTestServer(t)
	agent := s.channel()
	assert.True(t, strings.HasPrefix(agent.APIKey, "sk-"))

	w := s.doJSON(http.MethodPost, "/channels/"+agent.ChannelID+"/pair", agent.APIKey,
		createPairingCodeRequest{EncryptedChannelKey: "wrapped"})
	require.Equal(t, http.StatusCreated, w.Code)
	code := decode[createPairingCodeResponse](t, w)
	assert.Len(t, code.Code, 6)
	_, err := time.Parse(time.RFC3339Nano, code.ExpiresAt)
	assert.NoError(t, err)

	w = s.doJSON(http.MethodPost, "/pair", "", redeemRequest{Code: code.Code})
	require.Equal(t, http.StatusOK, w.Code)
	redeemed := decode[redeemResponse](t, w)
	assert.Equal(t, agent.ChannelID, redeemed.ChannelID)
	assert.Equal(t, "wrapped", redeemed.EncryptedChannelKey)

	w = s.doJSON(http.MethodPost, "/pair", "", redeemRequest{Code: code.Code})
	assert.Equal(t, http.StatusGone, w.Code)

	// the redeemed key works against the same mailbox
	w = s.doJSON(http.MethodGet, "/messages", redeemed.APIKey, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMailboxFlow(t *testing.T) {
	s := newTestServer(t)
	agent := s.channel()
	other := s.channel()

	body := []byte{0x00, 0x01, 0xfe, 0xff}
	w := s.doJSON(http.MethodPost, "/messages", agent.APIKey, postMessageRequest{
		Sender: "agent",
		Body:   base64.StdEncoding.EncodeToString(body),
		Nonce:  base64.StdEncoding.EncodeToString([]byte("nonce-123456")),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	posted := decode[postMessageResponse](t, w)

	w = s.doJSON(http.MethodGet, "/messages", agent.APIKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Messages []Message `json:"messages"`
	}](t, w)
	require.Len(t, list.Messages, 1)
	got := list.Messages[0]
	assert.Equal(t, posted.ID, got.ID)
	assert.Equal(t, posted.CreatedAt, got.CreatedAt)
	assert.Nil(t, got.ContentType)
	raw, err := base64.StdEncoding.DecodeString(got.Body)
	require.NoError(t, err)
	assert.Equal(t, body, raw)

	w = s.doJSON(http.MethodGet, "/messages?since="+got.CreatedAt, agent.APIKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())

	// another channel sees nothing and cannot delete
	w = s.doJSON(http.MethodGet, "/messages", other.APIKey, nil)
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())
	w = s.doJSON(http.MethodDelete, "/messages/"+posted.ID, other.APIKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.doJSON(http.MethodDelete, "/messages/"+posted.ID, agent.APIKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":true}`, w.Body.String())

	w = s.doJSON(http.MethodDelete, "/messages/"+posted.ID, agent.APIKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCaptureFlow(t *testing.T) {
	s := newTestServer(t)
	agent := s.channel()

	w := s.doJSON(http.MethodPost, "/api/capture/sessions", agent.APIKey, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	session := decode[createSessionResponse](t, w)
	base := "/api/capture/sessions/" + session.SessionID

	photo := bytes.Repeat([]byte{7}, 500)
	w = s.do(http.MethodPost, base+"/upload", agent.APIKey, bytes.NewReader(photo), map[string]string{
		HeaderFilename:  "photo-001.jpg",
		HeaderStartedAt: "2025-07-01T08:00:00.000Z",
		HeaderSource:    "camera-environment",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"uploaded":"photo-001.jpg","size":500}`, w.Body.String())

	w = s.do(http.MethodPost, base+"/upload", agent.APIKey, strings.NewReader("x"), map[string]string{
		HeaderStartedAt: "2025-07-01T08:00:00.000Z",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, base+"/upload", agent.APIKey, bytes.NewReader(make([]byte, 2048)), map[string]string{
		HeaderFilename:  "big.png",
		HeaderStartedAt: "2025-07-01T08:00:00.000Z",
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = s.doJSON(http.MethodGet, base+"/manifest", agent.APIKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	manifest := decode[models.Manifest](t, w)
	require.Len(t, manifest.Files, 1)
	assert.Equal(t, "camera-environment", manifest.Files[0].Source)
	assert.Equal(t, int64(500), manifest.Files[0].Size)

	w = s.do(http.MethodGet, base+"/files/photo-001.jpg", agent.APIKey, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "500", w.Header().Get("Content-Length"))
	assert.Equal(t, photo, w.Body.Bytes())

	w = s.do(http.MethodGet, base+"/files/photo-001.jpg/url", agent.APIKey, nil, nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = s.doJSON(http.MethodGet, "/api/capture/sessions?status=active", agent.APIKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Sessions []SessionSummary `json:"sessions"`
	}](t, w)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, 1, list.Sessions[0].FileCount)
	assert.Nil(t, list.Sessions[0].EndedAt)

	// capability finalize, no bearer
	w = s.doJSON(http.MethodPost, base+"/finalize?token=wrong", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.doJSON(http.MethodPost, base+"/finalize?token="+session.FinalizeToken, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	fin := decode[finalizeResponse](t, w)
	assert.True(t, fin.Finalized)

	w = s.doJSON(http.MethodPost, base+"/finalize", agent.APIKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, base+"/upload", agent.APIKey, strings.NewReader("x"), map[string]string{
		HeaderFilename:  "photo-002.jpg",
		HeaderStartedAt: "2025-07-01T08:00:00.000Z",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.doJSON(http.MethodGet, "/api/capture/sessions?status=completed", agent.APIKey, nil)
	list = decode[struct {
		Sessions []SessionSummary `json:"sessions"`
	}](t, w)
	require.Len(t, list.Sessions, 1)
	require.NotNil(t, list.Sessions[0].EndedAt)
	assert.Equal(t, fin.EndedAt, *list.Sessions[0].EndedAt)

	w = s.doJSON(http.MethodDelete, base, agent.APIKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":true}`, w.Body.String())

	w = s.doJSON(http.MethodGet, base+"/manifest", agent.APIKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodGet, base+"/files/photo-001.jpg", agent.APIKey, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.doJSON(http.MethodDelete, base, agent.APIKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCapture_CrossChannel(t *testing.T) {
	s := newTestServer(t)
	a := s.channel()
	b := s.channel()

	w := s.doJSON(http.MethodPost, "/api/capture/sessions", a.APIKey, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	base := "/api/capture/sessions/" + decode[createSessionResponse](t, w).SessionID

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, base + "/finalize"},
		{http.MethodGet, base + "/manifest"},
		{http.MethodGet, base + "/files/manifest.json"},
		{http.MethodDelete, base},
	} {
		w := s.doJSON(tc.method, tc.path, b.APIKey, nil)
		assert.Contains(t, []int{http.StatusForbidden, http.StatusNotFound}, w.Code, tc.method+" "+tc.path)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	s.channel()
	w = s.do(http.MethodGet, "/metrics", "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `dropbox_http_requests_total{route="/channels",status="201"} 1`)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(recovery(logging.Nop()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal error"}`, w.Body.String())
}
