package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elsanchez/smart-extract/internal/domain"
	"github.com/elsanchez/smart-extract/internal/registry"
	"github.com/elsanchez/smart-extract/internal/repository/sqlite"
)

type stubExtractor struct {
	result *domain.ExtractionResult
	err    error
	got    string
	panics bool
}

func (s *stubExtractor) Extract(_ context.Context, u string) (*domain.ExtractionResult, error) {
	if s.panics {
		panic("boom")
	}
	s.got = u
	return s.result, s.err
}

const testRegistryKey = "test-key"

type testEnv struct {
	db  *sqlite.Database
	ext *stubExtractor
	srv *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.NewDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ext := &stubExtractor{}
	store := registry.NewLocal(db.AccountRepo, domain.PlatformInstagram)
	h := NewHandlers(ext, db.AccountRepo, db.ExtractionRepo, store, zerolog.Nop()).WithRegistryKey(testRegistryKey)
	srv := httptest.NewServer(NewRouter(h, true, zerolog.Nop()))
	t.Cleanup(srv.Close)

	return &testEnv{db: db, ext: ext, srv: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy","service":"instagram-extractor"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestExtract_SuccessShape(t *testing.T) {
	env := newTestEnv(t)
	env.ext.result = &domain.ExtractionResult{
		Success:   true,
		Caption:   "cap",
		Comments:  []string{},
		PostURL:   "https://www.instagram.com/p/X/",
		Username:  "chef",
		MediaType: domain.MediaPhoto,
	}

	resp, body := env.do(t, http.MethodPost, "/extract-instagram", ExtractRequest{URL: "https://www.instagram.com/p/X/"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://www.instagram.com/p/X/", env.ext.got)
	assert.JSONEq(t, `{
		"success": true,
		"caption": "cap",
		"comments": [],
		"postUrl": "https://www.instagram.com/p/X/",
		"username": "chef",
		"mediaType": "photo"
	}`, string(body))
}

func TestExtract_MissingURL(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodPost, "/extract-instagram", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":"Missing 'url' in request body"}`, string(body))
}

func TestExtract_ErrorStatusCodes(t *testing.T) {
	tests := []struct {
		kind   domain.Kind
		status int
	}{
		{domain.KindInvalidInput, http.StatusBadRequest},
		{domain.KindNoAccountsAvailable, http.StatusServiceUnavailable},
		{domain.KindAuthenticationFailed, http.StatusUnauthorized},
		{domain.KindAccountChallenged, http.StatusForbidden},
		{domain.KindRateLimited, http.StatusTooManyRequests},
		{domain.KindNotFound, http.StatusNotFound},
		{domain.KindUpstream, http.StatusInternalServerError},
	}

	seen := map[int]bool{}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			env := newTestEnv(t)
			env.ext.err = domain.NewError(tt.kind, "failure", errors.New("cause")).WithHint("a hint")

			resp, body := env.do(t, http.MethodPost, "/extract-instagram", ExtractRequest{URL: "u"})
			assert.Equal(t, tt.status, resp.StatusCode)

			var eb ErrorBody
			require.NoError(t, json.Unmarshal(body, &eb))
			assert.False(t, eb.Success)
			assert.Equal(t, "failure: cause", eb.Error)
			assert.Equal(t, "a hint", eb.Hint)
		})
		seen[tt.status] = true
	}
	assert.Len(t, seen, len(tests), "each kind maps to a distinct status")
}

func TestRecoveryMiddleware(t *testing.T) {
	env := newTestEnv(t)
	env.ext.panics = true

	resp, _ := env.do(t, http.MethodPost, "/extract-instagram", ExtractRequest{URL: "u"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodOptions, "/extract-instagram", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAccountsAPI(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/accounts", CreateAccountRequest{Username: "chef", Secret: "pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	id := created.Data.ID
	require.NotZero(t, id)

	resp, body = env.do(t, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body), `"credential"`)
	assert.Contains(t, string(body), `"username":"chef"`)

	resp, _ = env.do(t, http.MethodPost, "/api/accounts/"+itoa(id)+"/disable", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/accounts?active=false", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"isActive":false`)

	resp, _ = env.do(t, http.MethodPost, "/api/accounts/"+itoa(id)+"/reactivate", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/accounts/"+itoa(id)+"/session", SessionRequest{SessionID: "abc"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	acc, err := env.db.AccountRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "abc", acc.SessionID)
	assert.True(t, acc.Eligible())

	resp, _ = env.do(t, http.MethodPost, "/api/accounts/9999/reactivate", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/accounts?status=weird", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/accounts", CreateAccountRequest{Username: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/accounts/"+itoa(id), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatsAndHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.db.AccountRepo.Create(ctx, &domain.Account{Username: "a", Secret: "x", IsActive: true})
	require.NoError(t, err)
	require.NoError(t, env.db.ExtractionRepo.Record(ctx, &domain.Extraction{URL: "u", Outcome: domain.OutcomeSuccess}))

	resp, body := env.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats struct {
		Data Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 1, stats.Data.Accounts[domain.HealthActive])
	assert.Equal(t, 1, stats.Data.Extractions.Total)

	resp, body = env.do(t, http.MethodGet, "/api/extractions?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"outcome":"success"`)

	resp, _ = env.do(t, http.MethodGet, "/api/extractions?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegistryRPC_WithRemoteStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.db.AccountRepo.Create(ctx, &domain.Account{Username: "a", Secret: "pw", ProxyURL: "http://p:1", IsActive: true})
	require.NoError(t, err)

	// El cliente remoto habla con las rutas /rpc del daemon
	remote := registry.NewRemote(env.srv.URL, testRegistryKey, 5*time.Second)

	acc, err := remote.NextAccount(ctx)
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, id, acc.ID)
	assert.Equal(t, "pw", acc.Secret)

	status := domain.HealthBanned
	inactive := false
	require.NoError(t, remote.UpdateAccount(ctx, registry.AccountUpdate{AccountID: id, Status: &status, IsActive: &inactive}))

	acc, err = remote.NextAccount(ctx)
	require.NoError(t, err)
	assert.Nil(t, acc)

	assert.Error(t, remote.UpdateAccount(ctx, registry.AccountUpdate{AccountID: 4040, UsageBump: true}))
}

func TestRegistryRPC_RequiresKey(t *testing.T) {
	db, err := sqlite.NewDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := registry.NewLocal(db.AccountRepo, domain.PlatformInstagram)
	h := NewHandlers(&stubExtractor{}, db.AccountRepo, db.ExtractionRepo, store, zerolog.Nop()).WithRegistryKey("k3y")
	srv := httptest.NewServer(NewRouter(h, true, zerolog.Nop()))
	t.Cleanup(srv.Close)

	_, err = registry.NewRemote(srv.URL, "wrong", 5*time.Second).NextAccount(context.Background())
	assert.Error(t, err)

	acc, err := registry.NewRemote(srv.URL, "k3y", 5*time.Second).NextAccount(context.Background())
	require.NoError(t, err)
	assert.Nil(t, acc)
}

func TestRegistryRPC_NotMountedWithoutKey(t *testing.T) {
	db, err := sqlite.NewDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.AccountRepo.Create(context.Background(), &domain.Account{Username: "a", Secret: "hunter2", IsActive: true})
	require.NoError(t, err)

	store := registry.NewLocal(db.AccountRepo, domain.PlatformInstagram)
	for _, serve := range []bool{false, true} {
		h := NewHandlers(&stubExtractor{}, db.AccountRepo, db.ExtractionRepo, store, zerolog.Nop())
		srv := httptest.NewServer(NewRouter(h, serve, zerolog.Nop()))

		resp, err := http.Post(srv.URL+registry.NextAccountPath, "application/json", nil)
		require.NoError(t, err)
		var body bytes.Buffer
		body.ReadFrom(resp.Body)
		resp.Body.Close()
		srv.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "serve=%v", serve)
		assert.NotContains(t, body.String(), "hunter2")
	}
}

func TestRegistryRPC_NoCORS(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+registry.NextAccountPath, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Authorization", "Bearer "+testRegistryKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_RemotePoolHidesAccountsAPI(t *testing.T) {
	db, err := sqlite.NewDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := registry.NewRemote("http://127.0.0.1:1", "k", time.Second)
	h := NewHandlers(&stubExtractor{}, nil, db.ExtractionRepo, store, zerolog.Nop())
	srv := httptest.NewServer(NewRouter(h, false, zerolog.Nop()))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/accounts")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotContains(t, out.Data, "accounts")
	assert.Contains(t, out.Data, "extractions")
}

func TestReviver_KeepsOperatorDisabled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.db.AccountRepo.Create(ctx, &domain.Account{Username: "a", Secret: "x", IsActive: true})
	require.NoError(t, err)
	require.NoError(t, env.db.AccountRepo.UpdateStatus(ctx, id, domain.HealthRateLimited))

	resp, _ := env.do(t, http.MethodPost, "/api/accounts/"+itoa(id)+"/disable", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	r := NewReviver(env.db.AccountRepo, time.Minute, time.Second, zerolog.Nop())
	r.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.EqualValues(t, 0, r.RunOnce(ctx))

	acc, err := env.db.AccountRepo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, acc.IsActive)
}

func TestReviver_RunOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.db.AccountRepo.Create(ctx, &domain.Account{Username: "a", Secret: "x", IsActive: true})
	require.NoError(t, err)
	require.NoError(t, env.db.AccountRepo.UpdateStatus(ctx, id, domain.HealthRateLimited))
	require.NoError(t, env.db.AccountRepo.SetActive(ctx, id, false))

	r := NewReviver(env.db.AccountRepo, time.Minute, time.Second, zerolog.Nop())
	assert.EqualValues(t, 0, r.RunOnce(ctx), "cooldown not elapsed")

	r.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.EqualValues(t, 1, r.RunOnce(ctx))

	acc, err := env.db.AccountRepo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, acc.Eligible())

	disabled := NewReviver(env.db.AccountRepo, 0, 0, zerolog.Nop())
	assert.False(t, disabled.Enabled())
	disabled.Start()
	disabled.Stop()
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
