package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/mailtoken/internal/common"
	"github.com/dmitrijs2005/mailtoken/internal/logging"
	"github.com/dmitrijs2005/mailtoken/internal/server/models"
	"github.com/dmitrijs2005/mailtoken/internal/server/services"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type fakeTokens struct {
	expireAt time.Time
	info     *services.TokenInfo
	infoErr  error
	valid    bool
	validErr error

	gotEmail string
	gotToken string
	gotNow   time.Time
	gotCtx   context.Context
}

func (f *fakeTokens) ExpireAt() time.Time { return f.expireAt }

func (f *fakeTokens) Info(ctx context.Context, email string, expiresAt time.Time) (*services.TokenInfo, error) {
	f.gotCtx = ctx
	f.gotEmail = email
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info, nil
}

func (f *fakeTokens) ValidateAt(_ context.Context, token string, now time.Time) (bool, error) {
	f.gotToken = token
	f.gotNow = now
	return f.valid, f.validErr
}

type fakeUsers struct {
	exists    bool
	existsErr error
	regErr    error
	gotReq    models.NewUserRequest
}

func (f *fakeUsers) Exists(context.Context, string) (bool, error) { return f.exists, f.existsErr }

func (f *fakeUsers) Register(_ context.Context, req models.NewUserRequest) (bool, error) {
	f.gotReq = req
	if f.regErr != nil {
		return false, f.regErr
	}
	return true, nil
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func newTestServer(us *fakeUsers, ts *fakeTokens, p Pinger) *HTTPServer {
	if us == nil {
		us = &fakeUsers{}
	}
	if ts == nil {
		ts = &fakeTokens{}
	}
	if p == nil {
		p = fakePinger{}
	}
	return NewHTTPServer("127.0.0.1:0", nopLogger{}, us, ts, p, prometheus.NewRegistry(), 0)
}

func do(t *testing.T, s *HTTPServer, req *http.Request) (int, map[string]any) {
	t.Helper()

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func TestRoot(t *testing.T) {
	s := newTestServer(nil, nil, nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "API is running...", string(raw))
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(nil, nil, nil)

	code, body := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "UP", body["status"])

	code, body = do(t, s, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "READY", body["status"])

	down := newTestServer(nil, nil, fakePinger{err: errors.New("refused")})
	code, body = do(t, down, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "DOWN", body["status"])
}

func TestUserExists(t *testing.T) {
	s := newTestServer(&fakeUsers{exists: true}, nil, nil)

	code, body := do(t, s, httptest.NewRequest(http.MethodGet, "/user_exists?email=a@b.com", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["exists"])

	code, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/user_exists", nil))
	assert.Equal(t, http.StatusBadRequest, code)

	broken := newTestServer(&fakeUsers{existsErr: common.ErrStoreUnavailable}, nil, nil)
	code, body = do(t, broken, httptest.NewRequest(http.MethodGet, "/user_exists?email=a@b.com", nil))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "store unavailable", body["error"])
}

func TestCreateUser(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		regErr   error
		wantCode int
	}{
		{"created", `{"name":"Anwar","email":"a@b.com"}`, nil, http.StatusCreated},
		{"duplicate", `{"name":"Anwar","email":"a@b.com"}`, common.ErrConstraintViolation, http.StatusConflict},
		{"invalid", `{"name":"","email":"a@b.com"}`, common.ErrValidation, http.StatusBadRequest},
		{"store down", `{"name":"Anwar","email":"a@b.com"}`, common.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"bad json", `{"name":`, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			us := &fakeUsers{regErr: tt.regErr}
			s := newTestServer(us, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			code, body := do(t, s, req)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantCode == http.StatusCreated, body["success"])
		})
	}
}

func TestCreateUser_PassesRequest(t *testing.T) {
	us := &fakeUsers{}
	s := newTestServer(us, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"Anwar","email":"a@b.com"}`))
	req.Header.Set("Content-Type", "application/json")
	do(t, s, req)

	assert.Equal(t, models.NewUserRequest{Name: "Anwar", Email: "a@b.com"}, us.gotReq)
}

func TestGetToken(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := &fakeTokens{
		expireAt: exp,
		info:     &services.TokenInfo{Token: "tok", Email: "a@b.com", ExpiresAt: exp, Digest: "d"},
	}
	s := newTestServer(nil, ts, nil)

	code, body := do(t, s, httptest.NewRequest(http.MethodPost, "/get_token?email=a@b.com", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "a@b.com", ts.gotEmail)

	info, ok := body["tokenInfo"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tok", info["token"])
	assert.Equal(t, "a@b.com", info["email"])
	assert.Equal(t, "2030-01-01T00:00:00Z", info["expireAt"])
	assert.NotContains(t, info, "hash")
}

func TestGetToken_Errors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantError string
	}{
		{"unknown user", common.ErrUnknownUser, http.StatusNotFound, "unknown user"},
		{"no secret", common.ErrConfig, http.StatusInternalServerError, "server misconfigured"},
		{"store down", common.ErrStoreUnavailable, http.StatusServiceUnavailable, "store unavailable"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(nil, &fakeTokens{infoErr: tt.err}, nil)

			code, body := do(t, s, httptest.NewRequest(http.MethodPost, "/get_token?email=a@b.com", nil))
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantError, body["error"])
			assert.NotContains(t, body, "tokenInfo")
		})
	}
}

func TestGetToken_MissingEmail(t *testing.T) {
	s := newTestServer(nil, nil, nil)

	code, body := do(t, s, httptest.NewRequest(http.MethodPost, "/get_token", nil))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
}

func TestValidateToken(t *testing.T) {
	fixed := time.Date(2029, 12, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		valid       bool
		err         error
		wantCode    int
		wantValid   bool
		wantExpired bool
	}{
		{"valid", true, nil, http.StatusOK, true, false},
		{"invalid", false, nil, http.StatusOK, false, false},
		{"expired", false, common.ErrTokenExpired, http.StatusOK, false, true},
		{"malformed", false, common.ErrMalformedToken, http.StatusBadRequest, false, false},
		{"store down", false, common.ErrStoreUnavailable, http.StatusServiceUnavailable, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := &fakeTokens{valid: tt.valid, validErr: tt.err}
			s := newTestServer(nil, ts, nil)
			s.now = func() time.Time { return fixed }

			code, body := do(t, s, httptest.NewRequest(http.MethodPost, "/validate_token?token=abc", nil))
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantValid, body["valid"])
			assert.Equal(t, tt.wantExpired, body["expired"])
			assert.Equal(t, "abc", ts.gotToken)
			assert.True(t, fixed.Equal(ts.gotNow))
		})
	}
}

func TestValidateToken_JSONBody(t *testing.T) {
	ts := &fakeTokens{valid: true}
	s := newTestServer(nil, ts, nil)

	req := httptest.NewRequest(http.MethodPost, "/validate_token", strings.NewReader(`{"token":"from-body"}`))
	req.Header.Set("Content-Type", "application/json")

	code, body := do(t, s, req)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "from-body", ts.gotToken)
}

func TestValidateToken_Missing(t *testing.T) {
	s := newTestServer(nil, nil, nil)

	code, _ := do(t, s, httptest.NewRequest(http.MethodPost, "/validate_token", nil))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(nil, nil, nil)

	code, body := do(t, s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEmpty(t, body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(nil, &fakeTokens{infoErr: common.ErrUnknownUser}, nil)

	do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	do(t, s, httptest.NewRequest(http.MethodPost, "/get_token?email=x@y.z", nil))

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := string(raw)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, out, `mailtoken_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, out, `mailtoken_tokens_outcomes_total{op="issue",outcome="unknown user"} 1`)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	s := newTestServer(nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	s := NewHTTPServer("127.0.0.1:99999", nopLogger{}, &fakeUsers{}, &fakeTokens{}, fakePinger{}, nil, 0)

	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}

func TestErrorClass(t *testing.T) {
	code, label := errorClass(common.ErrConstraintViolation)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already exists", label)

	code, _ = errorClass(errors.Join(common.ErrValidation, errors.New("name: cannot be blank")))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStoreCallsGetRequestDeadline(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := &fakeTokens{info: &services.TokenInfo{Token: "tok", Email: "a@b.com", ExpiresAt: exp}}
	s := NewHTTPServer("127.0.0.1:0", nopLogger{}, &fakeUsers{}, ts, fakePinger{}, prometheus.NewRegistry(), 3*time.Second)

	start := time.Now()
	code, _ := do(t, s, httptest.NewRequest(http.MethodPost, "/get_token?email=a@b.com", nil))
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, ts.gotCtx)

	deadline, ok := ts.gotCtx.Deadline()
	require.True(t, ok, "store context must carry a deadline")
	assert.WithinDuration(t, start.Add(3*time.Second), deadline, time.Second)
	assert.NotNil(t, ts.gotCtx.Done())

	// the request scope ends with the request
	assert.Error(t, ts.gotCtx.Err())
}

func TestStoreCallsDefaultDeadline(t *testing.T) {
	ts := &fakeTokens{info: &services.TokenInfo{Token: "tok"}}
	s := newTestServer(nil, ts, nil)

	do(t, s, httptest.NewRequest(http.MethodPost, "/get_token?email=a@b.com", nil))

	_, ok := ts.gotCtx.Deadline()
	assert.True(t, ok)
}

// hookedTokens runs hook with the context of each Info call.
type hookedTokens struct {
	*fakeTokens
	hook func(context.Context)
}

func (h *hookedTokens) Info(ctx context.Context, email string, expiresAt time.Time) (*services.TokenInfo, error) {
	h.hook(ctx)
	return h.fakeTokens.Info(ctx, email, expiresAt)
}

func TestStoreCallsSeeServerCancellation(t *testing.T) {
	var errDuringCall error
	ts := &hookedTokens{
		fakeTokens: &fakeTokens{info: &services.TokenInfo{Token: "tok"}},
		hook:       func(ctx context.Context) { errDuringCall = ctx.Err() },
	}
	s := NewHTTPServer("127.0.0.1:0", nopLogger{}, &fakeUsers{}, ts, fakePinger{}, prometheus.NewRegistry(), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.baseCtx = ctx

	do(t, s, httptest.NewRequest(http.MethodPost, "/get_token?email=a@b.com", nil))
	assert.ErrorIs(t, errDuringCall, context.Canceled)
}

func TestValidateToken_UnescapedPlusInQuery(t *testing.T) {
	ts := &fakeTokens{valid: true}
	s := newTestServer(nil, ts, nil)

	code, _ := do(t, s, httptest.NewRequest(http.MethodPost, "/validate_token?token=ab+cd/ef==", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ab+cd/ef==", ts.gotToken)
}
