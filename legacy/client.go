package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maccas-one/sessionauth/role"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout bounds each legacy request. Requests are never retried.
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// ErrLegacyRejected is returned for every failed legacy interaction.
var ErrLegacyRejected = errors.New("legacy login rejected")

// Config defines a public type used by sessionauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// BaseURL is the legacy API root, e.g. https://api.example.com/v1.
	BaseURL string
	Timeout time.Duration
	// FetchConfig enables seeding the store preference from /user/config.
	FetchConfig bool
}

// LoginResponse is the legacy login body.
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	Role         string `json:"role"`
}

func (r *LoginResponse) validate() error {
	if r.Token == "" {
		return errors.New("token is empty")
	}
	if r.RefreshToken == "" {
		return errors.New("refreshToken is empty")
	}
	if _, err := MapRole(r.Role); err != nil {
		return err
	}
	return nil
}

// UserConfig is the store preference carried over from the legacy account.
type UserConfig struct {
	StoreID   string `json:"storeId"`
	StoreName string `json:"storeName"`
}

// Account is everything needed to provision a migrated user.
type Account struct {
	UserID string
	Role   role.Role
	// Config is nil when the legacy service had none or could not be asked.
	Config *UserConfig
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Its Timeout is left as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for non-fatal failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client calls the legacy account service.
type Client struct {
	base        *url.URL
	http        *http.Client
	log         logrus.FieldLogger
	fetchConfig bool
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("legacy: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("legacy: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("legacy: unsupported scheme %q", base.Scheme)
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("legacy: timeout must not be negative")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		base:        base,
		http:        &http.Client{Timeout: cfg.Timeout},
		log:         logrus.StandardLogger(),
		fetchConfig: cfg.FetchConfig,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// Login forwards the credential as a form post to /auth/login.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/auth/login"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrLegacyRejected, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var out LoginResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, fmt.Errorf("%w: schema: %v", ErrLegacyRejected, err)
	}
	return &out, nil
}

// FetchConfig reads the legacy store preference with the legacy token.
func (c *Client) FetchConfig(ctx context.Context, legacyToken string) (*UserConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/user/config"), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrLegacyRejected, err)
	}
	req.Header.Set("Authorization", "Bearer "+legacyToken)
	req.Header.Set("Accept", "application/json")

	var out UserConfig
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.StoreID == "" {
		return nil, fmt.Errorf("%w: config has no storeId", ErrLegacyRejected)
	}
	return &out, nil
}

// Migrate logs in against the legacy service and assembles the account to
// provision. A config lookup failure is logged and otherwise ignored.
func (c *Client) Migrate(ctx context.Context, username, password string) (*Account, error) {
	resp, err := c.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	id, err := UserIDFromToken(resp.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLegacyRejected, err)
	}
	r, err := MapRole(resp.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLegacyRejected, err)
	}

	acct := &Account{UserID: id, Role: r}
	if c.fetchConfig {
		cfg, err := c.FetchConfig(ctx, resp.Token)
		if err != nil {
			c.log.WithError(err).WithField("user_id", id).Debug("legacy config unavailable")
		} else {
			acct.Config = cfg
		}
	}
	return acct, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLegacyRejected, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, body)
		return fmt.Errorf("%w: status %d", ErrLegacyRejected, resp.StatusCode)
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrLegacyRejected, err)
	}
	return nil
}
