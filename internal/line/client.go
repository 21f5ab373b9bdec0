// Package line is a thin REST client for the LINE Messaging API and the
// internal delayed push hop.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/yolo-japan/lineassist/internal/models"
)

const defaultBaseURL = "https://api.line.me"

// Opts holds client configuration.
type Opts struct {
	ChannelToken  string
	ChannelSecret string
	BaseURL       string
	AppBaseURL    string
	HTTPClient    *http.Client
}

// Option configures the client.
type Option func(*Opts)

// WithChannelToken sets the channel access token explicitly instead of
// reading LINE_CHANNEL_ACCESS_TOKEN.
func WithChannelToken(token string) Option {
	return func(o *Opts) { o.ChannelToken = token }
}

// WithChannelSecret sets the channel secret used to authenticate the delayed
// push hop.
func WithChannelSecret(secret string) Option {
	return func(o *Opts) { o.ChannelSecret = secret }
}

// WithBaseURL overrides the LINE API host, mainly for tests.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithAppBaseURL sets this service's own public base URL, the target of
// scheduled delayed pushes.
func WithAppBaseURL(u string) Option {
	return func(o *Opts) { o.AppBaseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = hc }
}

// Client calls the LINE Messaging API over HTTPS.
type Client struct {
	httpClient *http.Client
	token      string
	secret     string
	baseURL    string
	appBaseURL string
}

// NewClient builds a client. The token comes from the options or the
// LINE_CHANNEL_ACCESS_TOKEN environment variable.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		ChannelToken:  os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
		ChannelSecret: os.Getenv("LINE_CHANNEL_SECRET"),
		BaseURL:       defaultBaseURL,
		AppBaseURL:    os.Getenv("APP_BASE_URL"),
		HTTPClient:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ChannelToken == "" {
		return nil, fmt.Errorf("LINE_CHANNEL_ACCESS_TOKEN not set")
	}
	return &Client{
		httpClient: cfg.HTTPClient,
		token:      cfg.ChannelToken,
		secret:     cfg.ChannelSecret,
		baseURL:    cfg.BaseURL,
		appBaseURL: cfg.AppBaseURL,
	}, nil
}

// ReplyMessage answers a webhook event through its reply token. At most five
// messages fit in one reply; extras are dropped with a warning.
func (c *Client) ReplyMessage(ctx context.Context, replyToken string, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	if len(messages) > models.MaxMessagesPerReply {
		slog.Warn("ReplyMessage truncating messages", "count", len(messages), "max", models.MaxMessagesPerReply)
		messages = messages[:models.MaxMessagesPerReply]
	}
	payload := map[string]any{"replyToken": replyToken, "messages": messages}
	if err := c.post(ctx, "/v2/bot/message/reply", payload); err != nil {
		return fmt.Errorf("reply message: %w", err)
	}
	slog.Debug("ReplyMessage sent", "messages", len(messages))
	return nil
}

// PushMessage sends messages outside a reply window.
func (c *Client) PushMessage(ctx context.Context, userID string, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	if len(messages) > models.MaxMessagesPerReply {
		slog.Warn("PushMessage truncating messages", "count", len(messages), "max", models.MaxMessagesPerReply)
		messages = messages[:models.MaxMessagesPerReply]
	}
	payload := map[string]any{"to": userID, "messages": messages}
	if err := c.post(ctx, "/v2/bot/message/push", payload); err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	slog.Debug("PushMessage sent", "user_id", userID, "messages", len(messages))
	return nil
}

// ShowLoadingAnimation starts the typing indicator for the user's chat.
// Seconds are clamped to the API's 1..60 range. Failures only log; the
// indicator is cosmetic.
func (c *Client) ShowLoadingAnimation(ctx context.Context, userID string, seconds int) {
	if seconds < 1 {
		seconds = 1
	}
	if seconds > 60 {
		seconds = 60
	}
	payload := map[string]any{"chatId": userID, "loadingSeconds": seconds}
	if err := c.post(ctx, "/v2/bot/chat/loading/start", payload); err != nil {
		slog.Warn("ShowLoadingAnimation failed", "user_id", userID, "error", err)
	}
}

// LinkRichMenu attaches a rich menu to the user.
func (c *Client) LinkRichMenu(ctx context.Context, userID, richMenuID string) error {
	url := fmt.Sprintf("%s/v2/bot/user/%s/richmenu/%s", c.baseURL, userID, richMenuID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("link rich menu: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if err := c.do(req); err != nil {
		return fmt.Errorf("link rich menu: %w", err)
	}
	slog.Info("LinkRichMenu", "user_id", userID, "rich_menu_id", richMenuID)
	return nil
}

// ScheduleDelayedPush hands delayed messages to this service's delayed push
// endpoint and returns immediately, so the webhook turn is not held open for
// the delay. The first 16 bytes of the channel secret authenticate the hop.
func (c *Client) ScheduleDelayedPush(userID string, messages []models.Message, delaySec int) {
	if c.appBaseURL == "" || len(messages) == 0 {
		return
	}
	secret := c.secret
	if len(secret) > 16 {
		secret = secret[:16]
	}
	payload := map[string]any{
		"userId":   userID,
		"messages": messages,
		"delaySec": delaySec,
		"secret":   secret,
	}
	slog.Info("ScheduleDelayedPush", "user_id", userID, "messages", len(messages), "delay_sec", delaySec)

	go func() {
		body, err := json.Marshal(payload)
		if err != nil {
			slog.Error("ScheduleDelayedPush marshal failed", "error", err)
			return
		}
		req, err := http.NewRequest(http.MethodPost, c.appBaseURL+"/flow/delayed-push", bytes.NewReader(body))
		if err != nil {
			slog.Error("ScheduleDelayedPush request failed", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if err := c.do(req); err != nil {
			slog.Error("ScheduleDelayedPush failed", "user_id", userID, "error", err)
		}
	}()
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.do(req)
}

func (c *Client) do(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s returned %d: %s", req.URL.Path, resp.StatusCode, detail)
	}
	return nil
}
