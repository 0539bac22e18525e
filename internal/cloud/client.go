package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/nerrad567/sunseeker-core/internal/infrastructure/config"
	"github.com/nerrad567/sunseeker-core/internal/infrastructure/mqtt"
)

// Vendor API endpoints. The wireless variant runs on per-region
// clusters; legacy accounts share a single one.
const (
	legacyBaseURL     = "https://server.sk-robot.com/api"
	wirelessBaseURLEU = "https://wirefree-specific.sk-robot.com/api"
	wirelessBaseURLUS = "https://wirefree-specific-us.sk-robot.com/api"

	tokenEndpoint = "/auth/oauth/token"

	// The token endpoint authenticates the app itself with a fixed
	// basic credential ("app:app").
	appBasicAuth = "Basic YXBwOmFwcA=="

	userAgent = "okhttp/4.8.1"
)

// Push broker locations. Legacy brokers take a fixed shared
// credential; wireless brokers take a per-session password registered
// through the API (see MQTTCredentials).
const (
	legacyMQTTHost = "mqtts.sk-robot.com"
	legacyMQTTPort = 1883
	legacyMQTTUser = "app"
	legacyMQTTPass = "h4ijwkTnyrA"

	wirelessMQTTHostEU = "wfsmqtt-specific.sk-robot.com"
	wirelessMQTTHostUS = "wfsmqtt-specific-us.sk-robot.com"
	wirelessMQTTPort   = 1884
)

// Logger is the minimal logging interface the client needs. It is
// satisfied by logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client talks to the vendor cloud API: authentication, account and
// device queries, map downloads and device commands.
//
// Thread Safety: all methods are safe for concurrent use. The session
// is guarded by a read-write mutex and replaced wholesale on login
// and refresh.
type Client struct {
	http    *resty.Client
	cfg     config.CloudConfig
	variant string
	logger  Logger

	mu      sync.RWMutex
	session Session

	refreshMu    sync.Mutex
	refreshTimer *time.Timer
	refreshDelay time.Duration
	closed       bool
}

// New creates a cloud client for the configured variant and region.
//
// Parameters:
//   - cfg: cloud account and endpoint settings
//
// Returns:
//   - *Client: ready to Login
//   - error: if the variant or region does not resolve to an endpoint
func New(cfg config.CloudConfig) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		resolved, err := baseURL(cfg.Variant, cfg.Region)
		if err != nil {
			return nil, err
		}
		base = resolved
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryDelay := time.Duration(cfg.RetryDelay) * time.Second
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}

	httpc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(retries - 1).
		SetRetryWaitTime(retryDelay).
		SetRetryMaxWaitTime(retryDelay).
		SetHeader("Accept-Language", cfg.Language).
		SetHeader("User-Agent", userAgent)

	refreshDelay := 60 * time.Second

	return &Client{
		http:         httpc,
		cfg:          cfg,
		variant:      cfg.Variant,
		logger:       noopLogger{},
		refreshDelay: refreshDelay,
	}, nil
}

func baseURL(variant, region string) (string, error) {
	if variant == config.VariantLegacy {
		return legacyBaseURL, nil
	}
	switch region {
	case "EU":
		return wirelessBaseURLEU, nil
	case "US":
		return wirelessBaseURLUS, nil
	}
	return "", fmt.Errorf("cloud: no endpoint for variant %q region %q", variant, region)
}

// SetLogger installs a logger. Passing nil restores the no-op logger.
func (c *Client) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	c.logger = l
}

// SetAuthRefreshDelay sets how long after a 401 the token refresh
// fires.
func (c *Client) SetAuthRefreshDelay(d time.Duration) {
	if d > 0 {
		c.refreshDelay = d
	}
}

// Session returns a copy of the current session.
func (c *Client) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) setSession(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.AccessToken
}

// UserID returns the account id of the current session. Push topics
// are derived from it.
func (c *Client) UserID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.UserID
}

// Close stops any pending token refresh.
func (c *Client) Close() {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	c.closed = true
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
}

// ===== Authentication =====

// Login exchanges the account credentials for a session using the
// password grant. On success a refresh is scheduled shortly before
// the token expires.
func (c *Client) Login(ctx context.Context) error {
	return c.token(ctx, map[string]string{
		"username":   c.cfg.Email,
		"password":   c.cfg.Password,
		"grant_type": "password",
		"scope":      "server",
	})
}

// Refresh renews the session using the refresh_token grant.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.RLock()
	refresh := c.session.RefreshToken
	c.mu.RUnlock()
	if refresh == "" {
		return ErrNotLoggedIn
	}
	return c.token(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refresh,
		"scope":         "server",
	})
}

func (c *Client) token(ctx context.Context, form map[string]string) error {
	var s Session
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", appBasicAuth).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(form).
		SetResult(&s).
		Post(tokenEndpoint)
	if err != nil {
		return fmt.Errorf("cloud: token request: %w", err)
	}
	if resp.IsError() || s.AccessToken == "" {
		c.logger.Warn("token grant refused", "status", resp.StatusCode())
		return ErrLoginFailed
	}

	c.setSession(s)
	c.scheduleExpiryRefresh(s.ExpiresIn)
	c.logger.Debug("session established", "user_id", s.UserID, "expires_in", s.ExpiresIn)
	return nil
}

// scheduleExpiryRefresh arms a refresh for when the token is due to
// expire. Each successful grant re-arms it.
func (c *Client) scheduleExpiryRefresh(expiresIn int) {
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	c.scheduleRefresh(time.Duration(expiresIn) * time.Second)
}

// scheduleRefresh arms a one-shot token refresh, replacing any
// pending one.
func (c *Client) scheduleRefresh(delay time.Duration) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if c.closed {
		return
	}
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
	}
	c.refreshTimer = time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warn("token refresh failed", "error", err)
		}
	})
}

// unauthorized handles a 401: schedule a deferred refresh (replacing
// any pending one) and report the sentinel.
func (c *Client) unauthorized(path string) error {
	c.logger.Warn("unauthorized response, scheduling token refresh", "path", path, "delay", c.refreshDelay)
	c.scheduleRefresh(c.refreshDelay)
	return ErrUnauthorized
}

// ===== Request plumbing =====

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	token := c.accessToken()
	if token == "" {
		return nil, ErrNotLoggedIn
	}
	return c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "bearer "+token), nil
}

// getEnvelope performs an authorized GET and unwraps the vendor
// envelope.
func (c *Client) getEnvelope(ctx context.Context, path string) (*envelope, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var env envelope
	resp, err := req.SetResult(&env).Get(path)
	if err != nil {
		return nil, fmt.Errorf("cloud: get %s: %w", path, err)
	}
	return c.unwrap(path, resp, &env)
}

// postEnvelope performs an authorized JSON POST and unwraps the
// vendor envelope.
func (c *Client) postEnvelope(ctx context.Context, path string, body any) (*envelope, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var env envelope
	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&env).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("cloud: post %s: %w", path, err)
	}
	return c.unwrap(path, resp, &env)
}

func (c *Client) unwrap(path string, resp *resty.Response, env *envelope) (*envelope, error) {
	if resp.StatusCode() == http.StatusUnauthorized {
		return nil, c.unauthorized(path)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("cloud: %s: http status %d", path, resp.StatusCode())
	}
	if env.OK != nil && !*env.OK {
		return nil, &RejectedError{Msg: env.Msg}
	}
	if env.Code != 0 {
		return nil, &StatusError{Code: env.Code, Msg: env.Msg}
	}
	return env, nil
}

// Download fetches an absolute URL (map files, coverage overlays,
// robot avatars) and returns the raw body.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("cloud: download %s: %w", rawURL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("cloud: download %s: http status %d", rawURL, resp.StatusCode())
	}
	return resp.Body(), nil
}

// ===== Account queries =====

// Devices lists the mowers on the account.
func (c *Client) Devices(ctx context.Context) ([]DeviceSummary, error) {
	path := "/mower/device-user/list"
	if c.variant == config.VariantWireless {
		path = "/app_wireless_mower/device-user/allDevice"
	}
	env, err := c.getEnvelope(ctx, path)
	if err != nil {
		return nil, err
	}
	var devices []DeviceSummary
	if err := json.Unmarshal(env.Data, &devices); err != nil {
		return nil, fmt.Errorf("cloud: device list: %w", err)
	}
	c.logger.Debug("device list fetched", "count", len(devices))
	return devices, nil
}

// Settings fetches the settings document for one mower. Legacy
// accounts key it by serial, wireless accounts by device id.
func (c *Client) Settings(ctx context.Context, serial, deviceID string) (map[string]any, error) {
	path := "/mower/device-setting/" + url.PathEscape(serial)
	if c.variant == config.VariantWireless {
		path = "/app_wireless_mower/device/info/" + url.PathEscape(deviceID)
	}
	return c.dataObject(ctx, path)
}

// Status fetches the polled status document for one mower.
func (c *Client) Status(ctx context.Context, serial string) (map[string]any, error) {
	path := "/mower/device/getBysn?sn=" + url.QueryEscape(serial)
	if c.variant == config.VariantWireless {
		path = "/app_wireless_mower/device/getBysn?sn=" + url.QueryEscape(serial)
	}
	return c.dataObject(ctx, path)
}

func (c *Client) dataObject(ctx context.Context, path string) (map[string]any, error) {
	env, err := c.getEnvelope(ctx, path)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("cloud: %s: %w", path, err)
	}
	return data, nil
}

// ===== Map queries (wireless variant) =====

// FetchMapBundle resolves and downloads the geometry document and,
// when present, the mowing path history.
func (c *Client) FetchMapBundle(ctx context.Context, serial string) (*MapBundle, error) {
	env, err := c.getEnvelope(ctx, "/wireless_map/wireless_device/get?deviceSn="+url.QueryEscape(serial))
	if err != nil {
		return nil, err
	}
	var desc mapDescriptor
	if err := json.Unmarshal(env.Data, &desc); err != nil {
		return nil, fmt.Errorf("cloud: map descriptor: %w", err)
	}

	bundle := &MapBundle{}
	if desc.MapPathFileURL != "" {
		if bundle.Geometry, err = c.Download(ctx, desc.MapPathFileURL); err != nil {
			return nil, err
		}
	}
	if desc.RealPathFileURL != "" {
		if bundle.RealPath, err = c.Download(ctx, desc.RealPathFileURL); err != nil {
			c.logger.Warn("path history download failed", "serial", serial, "error", err)
			bundle.RealPath = nil
		}
	}
	if bundle.RealPath == nil && len(desc.RealPathData) > 0 {
		bundle.RealPath = desc.RealPathData
	}
	return bundle, nil
}

// FetchCoverageURLs resolves the heat and wifi coverage overlay
// locations. Either may be empty.
func (c *Client) FetchCoverageURLs(ctx context.Context, serial string) (heatURL, wifiURL string, err error) {
	env, err := c.getEnvelope(ctx, "/wireless_map/wireless_device/getHeatMap?deviceSn="+url.QueryEscape(serial))
	if err != nil {
		return "", "", err
	}
	var desc coverageDescriptor
	if err := json.Unmarshal(env.Data, &desc); err != nil {
		return "", "", fmt.Errorf("cloud: coverage descriptor: %w", err)
	}
	return desc.URL, desc.WifiURL, nil
}

// ===== Push broker credentials =====

// MQTTCredentials resolves the push broker connection details for the
// configured variant. For wireless accounts a fresh random password
// is sealed with the vendor public key and registered on the account
// record before it can be presented to the broker.
func (c *Client) MQTTCredentials(ctx context.Context) (mqtt.Credentials, error) {
	clientID := uuid.NewString()

	if c.variant == config.VariantLegacy {
		return mqtt.Credentials{
			Host:     legacyMQTTHost,
			Port:     legacyMQTTPort,
			TLS:      false,
			Username: legacyMQTTUser,
			Password: legacyMQTTPass,
			ClientID: clientID,
		}, nil
	}

	session := c.Session()
	if session.AccessToken == "" {
		return mqtt.Credentials{}, ErrNotLoggedIn
	}

	password := strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
	sealed, err := sealPassword(password)
	if err != nil {
		return mqtt.Credentials{}, err
	}
	if err := c.registerMQTTPassword(ctx, sealed); err != nil {
		return mqtt.Credentials{}, err
	}

	host := wirelessMQTTHostEU
	if c.cfg.Region == "US" {
		host = wirelessMQTTHostUS
	}
	return mqtt.Credentials{
		Host:     host,
		Port:     wirelessMQTTPort,
		TLS:      true,
		Username: session.Username + appIDCode,
		Password: password,
		ClientID: clientID,
	}, nil
}

// registerMQTTPassword stores the sealed broker password on the
// account record.
func (c *Client) registerMQTTPassword(ctx context.Context, sealed string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	var env envelope
	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"appIdCode":           appIDCode,
			"appType":             2,
			"mqttsPassword":       sealed,
			"operatingSystemCode": "android",
		}).
		SetResult(&env).
		Put("/admin/user/edit")
	if err != nil {
		return fmt.Errorf("cloud: register broker password: %w", err)
	}
	if _, err := c.unwrap("/admin/user/edit", resp, &env); err != nil {
		return err
	}
	return nil
}
