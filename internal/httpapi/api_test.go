package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/staffsync"
	"github.com/MrEthical07/staffsync/errkind"
	"github.com/MrEthical07/staffsync/internal/httpapi"
	"github.com/MrEthical07/staffsync/live"
	promexport "github.com/MrEthical07/staffsync/metrics/export/prometheus"
	"github.com/MrEthical07/staffsync/middleware"
	"github.com/MrEthical07/staffsync/notify"
	"github.com/MrEthical07/staffsync/permission"
	"github.com/MrEthical07/staffsync/refresh"
	"github.com/MrEthical07/staffsync/storage/memory"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct-horse-battery"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testEnv struct {
	srv    *httptest.Server
	engine *staffsync.Engine
	hub    *notify.Hub
	clock  *fakeClock
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEnv(t *testing.T, opts ...func(*httpapi.Options)) *testEnv {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	users := memory.NewUserDirectory()

	cfg := staffsync.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-access-secret-0123")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-refresh-secret-01")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := staffsync.New().
		WithConfig(cfg).
		WithUserProvider(users).
		WithClock(clock.Now).
		WithLogger(silentLogger()).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	hash, err := engine.HashPassword(testPassword)
	require.NoError(t, err)
	for _, u := range []staffsync.UserRecord{
		{ID: "u-admin", Email: "admin@corp.io", Role: permission.RoleAdmin},
		{ID: "u-hr", Email: "hr@corp.io", Role: permission.RoleHR},
		{ID: "u-emp", Email: "emp@corp.io", Role: permission.RoleEmployee},
		{ID: "u-emp2", Email: "emp2@corp.io", Role: permission.RoleEmployee},
	} {
		u.PasswordHash = hash
		users.Put(u)
	}

	hub := notify.NewHub(notify.WithHubLogger(silentLogger()))
	svc := notify.NewService(memory.NewNotificationStore(), hub, notify.WithClock(clock.Now))

	o := httpapi.Options{
		Auth:          engine,
		Notifications: svc,
		Perms:         engine.Roles(),
		Live:          live.NewHandler(hub, engine.Roles(), live.Config{}),
		Metrics:       promexport.Handler(promexport.NewRegistry(promexport.NewCollector(engine, promexport.WithHub(hub)))),
		Logger:        silentLogger(),
		Timeout:       5 * time.Second,
		Cookies:       httpapi.CookieConfig{Insecure: true},
	}
	for _, opt := range opts {
		opt(&o)
	}

	srv := httptest.NewServer(httpapi.NewRouter(o))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, engine: engine, hub: hub, clock: clock}
}

type tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

func (e *testEnv) do(t *testing.T, client *http.Client, method, path, token string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if client == nil {
		client = e.srv.Client()
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) login(t *testing.T, email string) tokens {
	t.Helper()
	resp := e.do(t, nil, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out tokens
	decode(t, resp, &out)
	return out
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func requireErrorKind(t *testing.T, resp *http.Response, status int, kind errkind.Kind) {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	var body middleware.ErrorBody
	decode(t, resp, &body)
	require.Equal(t, kind, body.Error)
}

func dialLive(t *testing.T, e *testEnv, access string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + access}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.CloseNow() })
	return c
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var f frame
	require.NoError(t, wsjson.Read(ctx, c, &f))
	return f
}

func TestAdminScenarioRefreshesTransparently(t *testing.T) {
	e := newEnv(t)
	tok := e.login(t, "admin@corp.io")
	require.Equal(t, "u-admin", tok.User.ID)
	require.Equal(t, permission.RoleAdmin, tok.User.Role)

	var clientLog syncBuffer
	coord, err := refresh.New(refresh.Config{
		Refresher: &refresh.HTTPRefresher{BaseURL: e.srv.URL, Client: e.srv.Client()},
		Store:     refresh.NewTokenStore(tok.AccessToken, tok.RefreshToken),
		Logger:    slog.New(slog.NewJSONHandler(&clientLog, nil)),
	})
	require.NoError(t, err)
	client := refresh.NewClient(coord, e.srv.Client().Transport)

	ws := dialLive(t, e, tok.AccessToken)
	require.NoError(t, wsjson.Write(context.Background(), ws, map[string]string{"event": live.EventJoinUserRoom}))
	require.Equal(t, live.EventJoined, readFrame(t, ws).Event)

	resp := e.do(t, client, http.MethodPost, "/notifications", "", map[string]string{
		"userId":  "u-admin",
		"title":   "Payroll approved",
		"message": "March payroll is ready.",
		"kind":    "success",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created notify.Notification
	decode(t, resp, &created)

	f := readFrame(t, ws)
	require.Equal(t, notify.EventNew, f.Event)
	var pushed notify.Notification
	require.NoError(t, json.Unmarshal(f.Data, &pushed))
	require.Equal(t, created.ID, pushed.ID)
	require.Equal(t, "Payroll approved", pushed.Title)

	// Both the cached access token and every request below hit TokenExpired.
	e.clock.Advance(15*time.Minute + time.Second)

	const callers = 5
	var wg sync.WaitGroup
	counts := make([]int, callers)
	statuses := make([]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/notifications/unread-count", nil)
			resp, err := client.Do(req)
			if err != nil {
				return
			}
			defer resp.Body.Close()
			statuses[i] = resp.StatusCode
			var out struct {
				Count int `json:"count"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&out)
			counts[i] = out.Count
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.Equal(t, http.StatusOK, statuses[i], "caller %d", i)
		require.Equal(t, 1, counts[i], "caller %d", i)
	}
	require.EqualValues(t, 1, coord.RefreshCalls())
	require.Equal(t, 1, strings.Count(clientLog.String(), `"msg":"tokens refreshed"`))
	require.EqualValues(t, 1, e.engine.MetricsSnapshot().Counters[staffsync.MetricRefreshSuccess])
	require.NotEqual(t, tok.AccessToken, coord.Store().Access())

	resp = e.do(t, client, http.MethodPatch, "/notifications/"+created.ID+"/read", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	f = readFrame(t, ws)
	require.Equal(t, notify.EventRead, f.Event)
	var payload notify.IDPayload
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	require.Equal(t, created.ID, payload.NotificationID)

	resp = e.do(t, client, http.MethodGet, "/notifications/unread-count", "", nil)
	var count struct {
		Count int `json:"count"`
	}
	decode(t, resp, &count)
	require.Zero(t, count.Count)
	require.EqualValues(t, 1, coord.RefreshCalls())
}

func TestLoginErrors(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, nil, http.MethodPost, "/auth/login", "", map[string]string{"email": "admin@corp.io", "password": "wrong"})
	requireErrorKind(t, resp, http.StatusUnauthorized, errkind.InvalidCredentials)

	resp = e.do(t, nil, http.MethodPost, "/auth/login", "", map[string]string{"email": "ghost@corp.io", "password": testPassword})
	requireErrorKind(t, resp, http.StatusUnauthorized, errkind.InvalidCredentials)

	resp = e.do(t, nil, http.MethodPost, "/auth/login", "", map[string]string{"email": "admin@corp.io", "password": testPassword, "otp": "1"})
	requireErrorKind(t, resp, http.StatusBadRequest, errkind.InvalidInput)

	resp = e.do(t, nil, http.MethodPost, "/auth/login", "", map[string]string{"email": " "})
	requireErrorKind(t, resp, http.StatusBadRequest, errkind.InvalidInput)
}

func TestCookieSession(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, nil, http.MethodPost, "/auth/login", "", map[string]string{"email": "emp@corp.io", "password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookies := map[string]*http.Cookie{}
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, "access_token")
	require.Contains(t, cookies, "refresh_token")
	require.True(t, cookies["access_token"].HttpOnly)
	require.Equal(t, "/auth", cookies["refresh_token"].Path)

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/notifications", nil)
	require.NoError(t, err)
	req.AddCookie(cookies["access_token"])
	list, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer list.Body.Close()
	require.Equal(t, http.StatusOK, list.StatusCode)

	req, err = http.NewRequest(http.MethodPost, e.srv.URL+"/auth/refresh", nil)
	require.NoError(t, err)
	req.AddCookie(cookies["refresh_token"])
	refreshed, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer refreshed.Body.Close()
	require.Equal(t, http.StatusOK, refreshed.StatusCode)
	var out tokens
	decode(t, refreshed, &out)
	require.NotEmpty(t, out.AccessToken)
	require.NotEmpty(t, out.RefreshToken)

	resp = e.do(t, nil, http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	for _, c := range resp.Cookies() {
		require.Empty(t, c.Value)
		require.Negative(t, c.MaxAge)
	}
	require.Len(t, resp.Cookies(), 2)
}

func TestRefreshFailures(t *testing.T) {
	e := newEnv(t)
	tok := e.login(t, "emp@corp.io")

	resp := e.do(t, nil, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": "garbage"})
	requireErrorKind(t, resp, http.StatusUnauthorized, errkind.RefreshFailed)

	resp = e.do(t, nil, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": tok.AccessToken})
	requireErrorKind(t, resp, http.StatusUnauthorized, errkind.RefreshFailed)

	resp = e.do(t, nil, http.MethodPost, "/auth/refresh", "", nil)
	requireErrorKind(t, resp, http.StatusUnauthorized, errkind.RefreshFailed)

	e.clock.Advance(8 * 24 * time.Hour)
	resp = e.do(t, nil, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": tok.RefreshToken})
	requireErrorKind(t, resp, http.StatusUnauthorized, errkind.RefreshFailed)
}

func TestGuardRejections(t *testing.T) {
	e := newEnv(t)
	tok := e.login(t, "emp@corp.io")

	resp := e.do(t, nil, http.MethodGet, "/notifications", "", nil)
	require.Contains(t, resp.Header.Get("WWW-Authenticate"), "invalid_request")
	requireErrorKind(t, resp, http.StatusUnauthorized, errkind.MissingToken)

	resp = e.do(t, nil, http.MethodGet, "/notifications", tok.RefreshToken, nil)
	requireErrorKind(t, resp, http.StatusUnauthorized, errkind.TokenInvalid)

	e.clock.Advance(16 * time.Minute)
	resp = e.do(t, nil, http.MethodGet, "/notifications", tok.AccessToken, nil)
	requireErrorKind(t, resp, http.StatusUnauthorized, errkind.TokenExpired)

	snap := e.engine.MetricsSnapshot()
	require.EqualValues(t, 1, snap.Counters[staffsync.MetricGuardMissingToken])
	require.EqualValues(t, 1, snap.Counters[staffsync.MetricAccessExpired])
}

func TestNotificationOwnership(t *testing.T) {
	e := newEnv(t)
	hr := e.login(t, "hr@corp.io")
	emp := e.login(t, "emp@corp.io")
	emp2 := e.login(t, "emp2@corp.io")
	admin := e.login(t, "admin@corp.io")

	resp := e.do(t, nil, http.MethodPost, "/notifications", emp.AccessToken, map[string]string{"userId": "u-emp2", "title": "hi"})
	requireErrorKind(t, resp, http.StatusForbidden, errkind.InsufficientRole)

	resp = e.do(t, nil, http.MethodPost, "/notifications", hr.AccessToken, map[string]string{"userId": "u-emp", "title": "Leave approved"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var n notify.Notification
	decode(t, resp, &n)
	require.Equal(t, notify.KindInfo, n.Kind)
	require.False(t, n.IsRead)

	resp = e.do(t, nil, http.MethodPost, "/notifications", hr.AccessToken, map[string]string{"userId": "u-emp", "title": "x", "kind": "urgent"})
	requireErrorKind(t, resp, http.StatusBadRequest, errkind.InvalidInput)

	resp = e.do(t, nil, http.MethodPatch, "/notifications/"+n.ID+"/read", emp2.AccessToken, nil)
	requireErrorKind(t, resp, http.StatusNotFound, errkind.NotFound)

	resp = e.do(t, nil, http.MethodGet, "/notifications?userId=u-emp", emp2.AccessToken, nil)
	requireErrorKind(t, resp, http.StatusForbidden, errkind.InsufficientRole)

	resp = e.do(t, nil, http.MethodGet, "/notifications?userId=u-emp&limit=10", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Items []notify.Notification `json:"items"`
	}
	decode(t, resp, &list)
	require.Len(t, list.Items, 1)

	resp = e.do(t, nil, http.MethodGet, "/notifications?limit=abc", emp.AccessToken, nil)
	requireErrorKind(t, resp, http.StatusBadRequest, errkind.InvalidInput)

	for range 2 {
		resp = e.do(t, nil, http.MethodPatch, "/notifications/"+n.ID+"/read", emp.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp = e.do(t, nil, http.MethodPatch, "/notifications/"+n.ID+"/unread", emp.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &n)
	require.False(t, n.IsRead)

	resp = e.do(t, nil, http.MethodPatch, "/notifications/read-all", emp.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var count struct {
		Count int `json:"count"`
	}
	decode(t, resp, &count)
	require.Equal(t, 1, count.Count)

	resp = e.do(t, nil, http.MethodDelete, "/notifications/"+n.ID, emp.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, nil, http.MethodGet, "/notifications/"+n.ID, emp.AccessToken, nil)
	requireErrorKind(t, resp, http.StatusNotFound, errkind.NotFound)
}

type grantFunc func(role, perm string) bool

func (f grantFunc) Has(role, perm string) bool { return f(role, perm) }

func TestPublishFollowsPermissionNotRole(t *testing.T) {
	defaults := permission.Default()
	e := newEnv(t, func(o *httpapi.Options) {
		o.Perms = grantFunc(func(role, perm string) bool {
			switch {
			case role == permission.RoleHR && perm == permission.PermNotificationsPublish:
				return false
			case role == permission.RoleEmployee && perm == permission.PermNotificationsPublish:
				return true
			}
			return defaults.Has(role, perm)
		})
	})
	hr := e.login(t, "hr@corp.io")
	emp := e.login(t, "emp@corp.io")

	resp := e.do(t, nil, http.MethodPost, "/notifications", hr.AccessToken, map[string]string{"userId": "u-emp", "title": "Leave approved"})
	requireErrorKind(t, resp, http.StatusForbidden, errkind.InsufficientRole)

	resp = e.do(t, nil, http.MethodPost, "/notifications", emp.AccessToken, map[string]string{"userId": "u-emp2", "title": "Cover my shift?"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestLiveJoinRequiresAdminForOtherRooms(t *testing.T) {
	e := newEnv(t)
	emp := e.login(t, "emp@corp.io")
	admin := e.login(t, "admin@corp.io")

	ws := dialLive(t, e, emp.AccessToken)
	require.NoError(t, wsjson.Write(context.Background(), ws, map[string]string{"event": live.EventJoinUserRoom, "userId": "u-emp2"}))
	f := readFrame(t, ws)
	require.Equal(t, live.EventError, f.Event)

	adminWS := dialLive(t, e, admin.AccessToken)
	require.NoError(t, wsjson.Write(context.Background(), adminWS, map[string]string{"event": live.EventJoinUserRoom, "userId": "u-emp2"}))
	require.Equal(t, live.EventJoined, readFrame(t, adminWS).Event)
	require.Len(t, e.hub.Connections("u-emp2"), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(e.srv.URL, "http")+"/ws", nil)
	require.Error(t, err)
}

func TestOperationalEndpoints(t *testing.T) {
	e := newEnv(t)
	e.login(t, "admin@corp.io")

	resp := e.do(t, nil, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(httpapi.HeaderRequestID))

	resp = e.do(t, nil, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "staffsync_login_success_total 1")
	require.Contains(t, string(body), "staffsync_live_connections")

	notReady := newEnv(t, func(o *httpapi.Options) { o.Ready = func() bool { return false } })
	resp = notReady.do(t, nil, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp = notReady.do(t, nil, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
