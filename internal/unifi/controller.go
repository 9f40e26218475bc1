// Package unifi is a minimal client for the UniFi controller API, covering
// the guest authorization commands this service needs.
package unifi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// Authorizer applies an approval decision to the network controller.
type Authorizer interface {
	// AuthorizeGuest admits the device for the given number of minutes.
	AuthorizeGuest(ctx context.Context, mac string, minutes int) error
}

// Config holds connection settings for a UniFi controller.
type Config struct {
	// Address is the controller host or host:port.
	Address string

	// Username and Password authenticate against the controller.
	Username string
	Password string

	// APIVersion selects the API flavor: v4, v5, unifiOS or UDMP-unifiOS.
	// The unifiOS flavors log in at /api/auth/login and prefix network API
	// calls with /proxy/network.
	APIVersion string

	// Site is the UniFi site name (default "default").
	Site string

	// SSLVerify toggles TLS certificate verification. Controllers commonly
	// run with self-signed certificates.
	SSLVerify bool

	// Timeout bounds each controller call (default 15s).
	Timeout time.Duration

	// Logger is an optional slog.Logger instance.
	Logger *slog.Logger

	// BaseURL overrides the derived https://Address[:port] base. Used in tests.
	BaseURL string
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Address == "" && c.BaseURL == "" {
		return fmt.Errorf("controller address is required")
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("controller credentials are required")
	}
	switch c.APIVersion {
	case "":
		c.APIVersion = "UDMP-unifiOS"
	case "v4", "v5", "unifiOS", "UDMP-unifiOS":
	default:
		return fmt.Errorf("unsupported controller api_version %q", c.APIVersion)
	}
	if c.Site == "" {
		c.Site = "default"
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Controller talks to one UniFi controller. Each command performs a fresh
// login; controller sessions expire quickly enough that caching them has
// proven unreliable.
type Controller struct {
	config Config
	logger *slog.Logger
}

// NewController creates a controller client.
func NewController(config Config) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		config: config,
		logger: config.Logger.With("component", "unifi"),
	}, nil
}

func (c *Controller) unifiOS() bool {
	return strings.HasSuffix(c.config.APIVersion, "unifiOS")
}

func (c *Controller) baseURL() string {
	if c.config.BaseURL != "" {
		return c.config.BaseURL
	}
	addr := c.config.Address
	if !strings.Contains(addr, ":") && !c.unifiOS() {
		// Legacy controllers listen on 8443.
		addr += ":8443"
	}
	return "https://" + addr
}

func (c *Controller) loginPath() string {
	if c.unifiOS() {
		return "/api/auth/login"
	}
	return "/api/login"
}

func (c *Controller) apiPath(suffix string) string {
	p := fmt.Sprintf("/api/s/%s/%s", c.config.Site, suffix)
	if c.unifiOS() {
		return "/proxy/network" + p
	}
	return p
}

func (c *Controller) newHTTPClient() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	transport := &http.Transport{}
	if !c.config.SSLVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Jar:       jar,
		Transport: transport,
		Timeout:   c.config.Timeout,
	}, nil
}

// session is one logged-in connection to the controller.
type session struct {
	client    *http.Client
	csrfToken string
}

func (c *Controller) login(ctx context.Context) (*session, error) {
	client, err := c.newHTTPClient()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{
		"username": c.config.Username,
		"password": c.config.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL()+c.loginPath(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("controller login: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("controller login: unexpected status %d", resp.StatusCode)
	}

	return &session{
		client:    client,
		csrfToken: resp.Header.Get("X-CSRF-Token"),
	}, nil
}

func (c *Controller) runCommand(ctx context.Context, payload map[string]any) error {
	sess, err := c.login(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL()+c.apiPath("cmd/stamgr"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build command request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sess.csrfToken != "" {
		req.Header.Set("X-CSRF-Token", sess.csrfToken)
	}

	resp, err := sess.client.Do(req)
	if err != nil {
		return fmt.Errorf("controller command: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("controller command: unexpected status %d", resp.StatusCode)
	}

	var result struct {
		Meta struct {
			RC string `json:"rc"`
		} `json:"meta"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode command response: %w", err)
	}
	if result.Meta.RC != "ok" {
		return fmt.Errorf("controller command failed: rc=%s", result.Meta.RC)
	}
	return nil
}

// AuthorizeGuest admits the device with the given MAC for minutes.
func (c *Controller) AuthorizeGuest(ctx context.Context, mac string, minutes int) error {
	c.logger.Info("authorizing guest", "mac", mac, "minutes", minutes)
	return c.runCommand(ctx, map[string]any{
		"cmd":     "authorize-guest",
		"mac":     strings.ToLower(mac),
		"minutes": minutes,
	})
}

// UnauthorizeGuest revokes a previously granted authorization.
func (c *Controller) UnauthorizeGuest(ctx context.Context, mac string) error {
	c.logger.Info("unauthorizing guest", "mac", mac)
	return c.runCommand(ctx, map[string]any{
		"cmd": "unauthorize-guest",
		"mac": strings.ToLower(mac),
	})
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
