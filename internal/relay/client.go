// Package relay is the client for the notification relay service: it registers
// a name against a push token, resolves names to tokens and asks the relay to
// deliver a push notification.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	pathSaveUser         = "/save-user"
	pathGetUser          = "/get-user"
	pathSendNotification = "/send-notification"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Notification is a push notification addressed to one token.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Token string `json:"token"`
}

type saveUserRequest struct {
	Name       string `json:"name"`
	NotifToken string `json:"notifToken"`
}

type getUserRequest struct {
	Username string `json:"username"`
}

type getUserResponse struct {
	NotifToken string `json:"notifToken"`
}

// Options tune a Client. Zero values pick defaults.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the relay over JSON/HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	log     *zap.Logger
}

// New creates a relay client for baseURL (scheme and host, no trailing slash needed).
func New(baseURL string, opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		log:     opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// SaveUser registers name as the owner of token.
func (c *Client) SaveUser(ctx context.Context, name, token string) error {
	_, err := c.post(ctx, pathSaveUser, saveUserRequest{Name: name, NotifToken: token})
	return err
}

// GetUser resolves username to its registered push token.
func (c *Client) GetUser(ctx context.Context, username string) (string, error) {
	body, err := c.post(ctx, pathGetUser, getUserRequest{Username: username})
	if err != nil {
		return "", err
	}
	var out getUserResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &DecodeError{Endpoint: pathGetUser, Err: err}
	}
	if strings.TrimSpace(out.NotifToken) == "" {
		return "", fmt.Errorf("%q: %w", username, ErrUserNotFound)
	}
	return out.NotifToken, nil
}

// SendNotification asks the relay to push n to n.Token.
func (c *Client) SendNotification(ctx context.Context, n Notification) error {
	_, err := c.post(ctx, pathSendNotification, n)
	return err
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("relay request failed",
			zap.String("path", path),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return nil, &NetworkError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Endpoint: path, Err: fmt.Errorf("read response: %w", err)}
	}

	c.log.Info("relay request",
		zap.String("path", path),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{Endpoint: path, StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), maxErrorBody)}
	}
	return body, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
