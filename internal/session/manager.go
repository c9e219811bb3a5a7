package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/civicvoice/civicvoice/client-go/internal/api"
	"github.com/civicvoice/civicvoice/client-go/internal/models"
	"github.com/civicvoice/civicvoice/client-go/internal/store"
	"github.com/civicvoice/civicvoice/client-go/internal/tokens"
	"github.com/civicvoice/civicvoice/client-go/pkg/logger"
	"github.com/civicvoice/civicvoice/client-go/pkg/metrics"
)

// State is the session lifecycle state.
type State int

const (
	Uninitialized State = iota
	Restoring
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "uninitialized"
}

// Config wires a Manager. Zero-value durations fall back to the defaults
// below; Store and BaseURL are required.
type Config struct {
	BaseURL    string
	Store      store.Store
	HTTPClient *http.Client
	// RefreshInterval drives the proactive background refresh (default 10m).
	RefreshInterval time.Duration
	// RestoreTimeout bounds the startup restoration sequence (default 10s).
	RestoreTimeout time.Duration
	// ExpiryLeeway treats tokens expiring within this window as expired.
	ExpiryLeeway time.Duration
	// OnForcedLogout is invoked after a system-initiated logout has cleared
	// all state; the UI layer uses it to navigate back to its login surface.
	OnForcedLogout func(reason string)
}

const (
	defaultRefreshInterval = 10 * time.Minute
	defaultRestoreTimeout  = 10 * time.Second
	defaultExpiryLeeway    = 30 * time.Second
)

// Manager is the single source of truth for "is there a logged-in user" and
// the sole owner of the refresh/logout state machine. It is safe for
// concurrent use. Cross-process coherence is not guaranteed: two processes
// sharing one store refresh independently and the last write wins.
type Manager struct {
	mu           sync.Mutex
	state        State
	user         *models.UserIdentity
	lastActivity time.Time
	stop         chan struct{}

	baseURL         string
	httpClient      *http.Client
	store           store.Store
	refreshInterval time.Duration
	restoreTimeout  time.Duration
	leeway          time.Duration
	onForcedLogout  func(reason string)

	api     *api.Client
	group   singleflight.Group
	limiter *rate.Limiter
}

func NewManager(cfg Config) *Manager {
	m := &Manager{
		state:           Uninitialized,
		baseURL:         cfg.BaseURL,
		httpClient:      cfg.HTTPClient,
		store:           cfg.Store,
		refreshInterval: cfg.RefreshInterval,
		restoreTimeout:  cfg.RestoreTimeout,
		leeway:          cfg.ExpiryLeeway,
		onForcedLogout:  cfg.OnForcedLogout,
		// throttles refresh storms; Wait blocks briefly instead of failing
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}
	if m.httpClient == nil {
		m.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if m.refreshInterval <= 0 {
		m.refreshInterval = defaultRefreshInterval
	}
	if m.restoreTimeout <= 0 {
		m.restoreTimeout = defaultRestoreTimeout
	}
	if m.leeway <= 0 {
		m.leeway = defaultExpiryLeeway
	}
	m.api = &api.Client{
		BaseURL:      m.baseURL,
		HTTPClient:   m.httpClient,
		Store:        m.store,
		ExpiryLeeway: m.leeway,
		RefreshFn:    m.Refresh,
		ForcedLogout: func(reason string) { m.ForceLogout(context.Background(), reason) },
	}
	return m
}

// API returns the authenticated request client bound to this session. Portal
// resource consumers issue all their calls through it.
func (m *Manager) API() *api.Client { return m.api }

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsAuthenticated reports whether a logged-in user is present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Authenticated && m.user != nil
}

// CurrentUser returns a copy of the logged-in identity, or nil.
func (m *Manager) CurrentUser() *models.UserIdentity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Touch records coarse-grained user activity. The timestamp is advisory; it
// does not gate the proactive refresh.
func (m *Manager) Touch() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

// LastActivity returns the most recent activity stamp.
func (m *Manager) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

type loginRequest struct {
	EmailOrPhone string `json:"emailOrPhone"`
	Password     string `json:"password"`
}

// RegisterRequest carries the account-creation fields.
type RegisterRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Password    string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login authenticates against the portal. Failures of any kind (bad
// credentials, network, decode) are logged and reported as false; state and
// storage are untouched until the full response has been accepted.
func (m *Manager) Login(ctx context.Context, identifier, password string) bool {
	var resp models.AuthResponse
	if !m.postAuth(ctx, "/auth/login", loginRequest{EmailOrPhone: identifier, Password: password}, &resp) {
		return false
	}
	return m.adopt(ctx, &resp)
}

// Register creates a new account; same success/failure contract as Login.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) bool {
	var resp models.AuthResponse
	if !m.postAuth(ctx, "/auth/register", req, &resp) {
		return false
	}
	return m.adopt(ctx, &resp)
}

// adopt persists a full auth response and transitions to Authenticated.
// Nothing is persisted unless both writes succeed.
func (m *Manager) adopt(ctx context.Context, resp *models.AuthResponse) bool {
	if resp.AccessToken == "" || resp.RefreshToken == "" || resp.User == nil {
		logger.Warnf("auth response missing tokens or user")
		return false
	}
	pair := models.TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if err := m.store.SaveTokens(ctx, pair); err != nil {
		logger.Errorf("persist tokens: %v", err)
		return false
	}
	if err := m.store.SaveUser(ctx, resp.User); err != nil {
		logger.Errorf("persist user: %v", err)
		// roll back the token write so no partial session survives
		if cerr := m.store.Clear(ctx); cerr != nil {
			logger.Warnf("rollback clear: %v", cerr)
		}
		return false
	}
	m.mu.Lock()
	m.state = Authenticated
	u := *resp.User
	m.user = &u
	m.lastActivity = time.Now()
	m.mu.Unlock()
	m.startRefreshLoop()
	return true
}

// Restore rebuilds session state from the persisted store at process start.
// The whole sequence is bounded by RestoreTimeout: if storage or the refresh
// endpoint hang, the manager forces itself into Unauthenticated rather than
// leaving the caller stuck in Restoring.
func (m *Manager) Restore(ctx context.Context) State {
	m.mu.Lock()
	m.state = Restoring
	m.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, m.restoreTimeout)
	defer cancel()

	done := make(chan State, 1)
	go func() { done <- m.restore(rctx) }()

	select {
	case s := <-done:
		return s
	case <-rctx.Done():
		logger.Warnf("session restore timed out after %s", m.restoreTimeout)
		m.setIfRestoring(Unauthenticated)
		return Unauthenticated
	}
}

func (m *Manager) restore(ctx context.Context) State {
	pair, ok, err := m.store.LoadTokens(ctx)
	if err != nil {
		logger.Warnf("restore: load tokens: %v", err)
	}
	if err != nil || !ok {
		// nothing persisted: no network call, straight to unauthenticated
		m.setIfRestoring(Unauthenticated)
		return Unauthenticated
	}

	if !tokens.Expired(pair.AccessToken, m.leeway) {
		if u, uok, uerr := m.store.LoadUser(ctx); uerr == nil && uok {
			return m.finishRestore(u)
		}
		// tokens without an identity are unusable; fall through to refresh
		// so the pair is revalidated before we trust it
	}

	// expired or undecodable access token: exactly one refresh attempt
	if m.Refresh(ctx) {
		if u, uok, uerr := m.store.LoadUser(ctx); uerr == nil && uok {
			return m.finishRestore(u)
		}
	}

	if err := m.store.Clear(ctx); err != nil {
		logger.Warnf("restore: clear store: %v", err)
	}
	m.setIfRestoring(Unauthenticated)
	return Unauthenticated
}

func (m *Manager) finishRestore(u *models.UserIdentity) State {
	m.mu.Lock()
	if m.state != Restoring {
		// the restore timeout already forced a terminal state
		s := m.state
		m.mu.Unlock()
		return s
	}
	m.state = Authenticated
	m.user = u
	m.lastActivity = time.Now()
	m.mu.Unlock()
	m.startRefreshLoop()
	return Authenticated
}

func (m *Manager) setIfRestoring(s State) {
	m.mu.Lock()
	if m.state == Restoring {
		m.state = s
	}
	m.mu.Unlock()
}

// Refresh exchanges the persisted refresh token for a new pair. Concurrent
// callers coalesce onto a single network call; only the first successful
// completion matters. On endpoint or network failure the session fails
// closed: all persisted and in-memory session data is cleared.
func (m *Manager) Refresh(ctx context.Context) bool {
	v, _, _ := m.group.Do("refresh", func() (interface{}, error) {
		return m.doRefresh(ctx), nil
	})
	ok, _ := v.(bool)
	return ok
}

func (m *Manager) doRefresh(ctx context.Context) bool {
	pair, ok, err := m.store.LoadTokens(ctx)
	if err != nil {
		logger.Errorf("refresh: load tokens: %v", err)
		m.failClosed(ctx)
		return false
	}
	if !ok || pair.RefreshToken == "" {
		return false
	}

	if err := m.limiter.Wait(ctx); err != nil {
		logger.Warnf("refresh: %v", err)
		m.failClosed(ctx)
		return false
	}

	var resp models.AuthResponse
	if !m.postAuth(ctx, "/auth/refresh", refreshRequest{RefreshToken: pair.RefreshToken}, &resp) || resp.AccessToken == "" {
		metrics.RefreshAttempts.WithLabelValues("failure").Inc()
		m.failClosed(ctx)
		return false
	}

	next := models.TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if next.RefreshToken == "" {
		// backend kept the old refresh token
		next.RefreshToken = pair.RefreshToken
	}
	if err := m.store.SaveTokens(ctx, next); err != nil {
		logger.Errorf("refresh: persist tokens: %v", err)
		m.failClosed(ctx)
		return false
	}

	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
	metrics.RefreshAttempts.WithLabelValues("success").Inc()
	return true
}

// failClosed wipes persisted and in-memory session data after an
// unrecoverable refresh failure.
func (m *Manager) failClosed(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		logger.Warnf("fail-closed clear: %v", err)
	}
	m.mu.Lock()
	m.user = nil
	if m.state == Authenticated || m.state == Restoring {
		m.state = Unauthenticated
	}
	m.mu.Unlock()
}

// Logout ends the session locally: stops the refresh loop and clears both
// in-memory identity and persisted storage. No network call is made.
func (m *Manager) Logout(ctx context.Context) {
	m.stopRefreshLoop()
	m.mu.Lock()
	m.user = nil
	m.state = Unauthenticated
	m.mu.Unlock()
	if err := m.store.Clear(ctx); err != nil {
		logger.Warnf("logout: clear store: %v", err)
	}
}

// ForceLogout is the system-initiated variant used when a request could not
// be authenticated even after a refresh. It additionally fires the configured
// hook so the application returns to its login surface. The reason is logged,
// never surfaced raw.
func (m *Manager) ForceLogout(ctx context.Context, reason string) {
	logger.Warnf("forced logout: %s", reason)
	metrics.ForcedLogouts.Inc()
	m.Logout(ctx)
	if m.onForcedLogout != nil {
		m.onForcedLogout(reason)
	}
}

// UpdateUser shallow-merges the set fields of update into the current
// identity and re-persists it. No network call is made; the caller is
// expected to have synced with the backend already. Valid only while
// authenticated.
func (m *Manager) UpdateUser(ctx context.Context, update models.UserIdentity) bool {
	m.mu.Lock()
	if m.state != Authenticated || m.user == nil {
		m.mu.Unlock()
		return false
	}
	merged := *m.user
	if update.FirstName != "" {
		merged.FirstName = update.FirstName
	}
	if update.LastName != "" {
		merged.LastName = update.LastName
	}
	if update.PhoneNumber != "" {
		merged.PhoneNumber = update.PhoneNumber
	}
	if update.Email != "" {
		merged.Email = update.Email
	}
	if update.ProfileImage != "" {
		merged.ProfileImage = update.ProfileImage
	}
	if !update.Role.IsZero() {
		merged.Role = update.Role
	}
	if update.Location != nil {
		merged.Location = update.Location
	}
	m.mu.Unlock()

	if err := m.store.SaveUser(ctx, &merged); err != nil {
		logger.Errorf("update user: persist: %v", err)
		return false
	}
	m.mu.Lock()
	m.user = &merged
	m.mu.Unlock()
	return true
}

// ProfileData carries the profile-completion fields.
type ProfileData struct {
	Location     *models.Location `json:"location,omitempty"`
	ProfileImage string           `json:"profileImage,omitempty"`
}

// CompleteProfile finalizes the user's profile with an authenticated call.
// On success the returned identity replaces the current one; on failure
// nothing is mutated.
func (m *Manager) CompleteProfile(ctx context.Context, data ProfileData) bool {
	m.mu.Lock()
	if m.state != Authenticated || m.user == nil {
		m.mu.Unlock()
		return false
	}
	id := m.user.ID
	m.mu.Unlock()

	var updated models.UserIdentity
	if err := m.api.DoJSON(ctx, http.MethodPut, "/users/"+id+"/complete-profile", data, &updated); err != nil {
		logger.Warnf("complete profile: %v", err)
		return false
	}
	if err := m.store.SaveUser(ctx, &updated); err != nil {
		logger.Errorf("complete profile: persist: %v", err)
		return false
	}
	m.mu.Lock()
	m.user = &updated
	m.mu.Unlock()
	return true
}

// postAuth issues an unauthenticated POST to an auth endpoint and decodes a
// 2xx JSON body into out. All failures are logged and reported as false.
func (m *Manager) postAuth(ctx context.Context, path string, body, out interface{}) bool {
	b, err := json.Marshal(body)
	if err != nil {
		logger.Errorf("%s: encode request: %v", path, err)
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(b))
	if err != nil {
		logger.Errorf("%s: build request: %v", path, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.httpClient.Do(req)
	if err != nil {
		logger.Warnf("%s: %v", path, err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warnf("%s returned %d", path, resp.StatusCode)
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		logger.Errorf("%s: decode response: %v", path, err)
		return false
	}
	return true
}

func (m *Manager) startRefreshLoop() {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()
	go m.refreshLoop(stop)
}

func (m *Manager) stopRefreshLoop() {
	m.mu.Lock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	m.mu.Unlock()
}

// refreshLoop refreshes proactively while authenticated. A failed proactive
// refresh ends the session immediately.
func (m *Manager) refreshLoop(stop chan struct{}) {
	t := time.NewTicker(m.refreshInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			ok := m.Refresh(ctx)
			cancel()
			if !ok {
				m.ForceLogout(context.Background(), "proactive refresh failed")
				return
			}
		}
	}
}
