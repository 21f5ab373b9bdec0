// Package api provides the HTTP surface of lineassist.
//
// It exposes the LINE webhook endpoint (signature checked through the LINE bot
// SDK), the internal delayed push endpoint used by flow delay nodes, and a
// health probe. All conversation logic lives in the bot package; the handlers
// here only own HTTP framing.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/yolo-japan/lineassist/internal/models"
)

const defaultAddr = ":8080"

// Errors returned by NewServer.
var (
	ErrNoBot           = errors.New("api server requires a bot")
	ErrNoChannelSecret = errors.New("api server requires the channel secret")
)

// EventHandler is the conversation router behind the webhook.
type EventHandler interface {
	HandleMessageText(ctx context.Context, userID, replyToken, text string)
	HandlePostback(ctx context.Context, userID, replyToken, data string)
	HandleFollow(ctx context.Context, userID string)
}

// Pusher delivers the delayed pushes.
type Pusher interface {
	PushMessage(ctx context.Context, userID string, messages []models.Message) error
}

// Opts configures the Server.
type Opts struct {
	Addr          string
	ChannelSecret string
	Bot           EventHandler
	Pusher        Pusher
}

// Option configures optional server settings.
type Option func(*Opts)

// WithAddr sets the listen address. Defaults to PORT or :8080.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithChannelSecret sets the LINE channel secret used for signature checks.
func WithChannelSecret(secret string) Option {
	return func(o *Opts) { o.ChannelSecret = secret }
}

// WithBot sets the conversation router.
func WithBot(b EventHandler) Option {
	return func(o *Opts) { o.Bot = b }
}

// WithPusher sets the transport for delayed pushes.
func WithPusher(p Pusher) Option {
	return func(o *Opts) { o.Pusher = p }
}

// Server is the lineassist HTTP server.
type Server struct {
	addr          string
	channelSecret string
	bot           EventHandler
	pusher        Pusher
}

// NewServer creates a Server. The channel secret falls back to the
// LINE_CHANNEL_SECRET environment variable.
func NewServer(opts ...Option) (*Server, error) {
	o := Opts{
		Addr:          defaultAddr,
		ChannelSecret: os.Getenv("LINE_CHANNEL_SECRET"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if port := os.Getenv("PORT"); o.Addr == defaultAddr && port != "" {
		o.Addr = ":" + port
	}
	if o.Bot == nil {
		return nil, ErrNoBot
	}
	if o.ChannelSecret == "" {
		return nil, ErrNoChannelSecret
	}
	return &Server{
		addr:          o.Addr,
		channelSecret: o.ChannelSecret,
		bot:           o.Bot,
		pusher:        o.Pusher,
	}, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/flow/delayed-push", s.delayedPushHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("lineassist API running", "addr", s.addr)
	return srv.ListenAndServe()
}
