package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/yolo-japan/lineassist/internal/models"
	"github.com/yolo-japan/lineassist/internal/util"
)

// maxDelaySeconds caps how long a delayed push may be deferred.
const maxDelaySeconds = 600

// webhookHandler receives LINE webhook callbacks. The SDK validates the
// signature while parsing; events are dispatched synchronously so the turn is
// finished when LINE gets its 200.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	cb, err := webhook.ParseRequest(s.channelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			slog.Warn("webhookHandler invalid signature")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		slog.Error("webhookHandler parse failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	for _, ev := range cb.Events {
		switch event := ev.(type) {
		case webhook.MessageEvent:
			userID := sourceUserID(event.Source)
			if userID == "" {
				continue
			}
			if text, ok := event.Message.(webhook.TextMessageContent); ok {
				s.bot.HandleMessageText(ctx, userID, event.ReplyToken, text.Text)
			}
		case webhook.PostbackEvent:
			userID := sourceUserID(event.Source)
			if userID == "" || event.Postback == nil {
				continue
			}
			s.bot.HandlePostback(ctx, userID, event.ReplyToken, event.Postback.Data)
		case webhook.FollowEvent:
			if userID := sourceUserID(event.Source); userID != "" {
				s.bot.HandleFollow(ctx, userID)
			}
		default:
			slog.Debug("webhookHandler ignoring event", "type", ev.GetType())
		}
	}
	w.WriteHeader(http.StatusOK)
}

// sourceUserID extracts the user id from a webhook event source. Group and
// room sources are not served by this bot.
func sourceUserID(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case *webhook.UserSource:
		return s.UserId
	}
	return ""
}

// delayedPushRequest is the internal payload posted by the LINE client when a
// flow defers messages past its own turn.
type delayedPushRequest struct {
	UserID   string           `json:"userId"`
	Messages []models.Message `json:"messages"`
	DelaySec int              `json:"delaySec"`
	Secret   string           `json:"secret"`
}

// delayedPushHandler sleeps out the requested delay and pushes the messages.
// The shared secret is the channel secret prefix set by the scheduling side.
func (s *Server) delayedPushHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req delayedPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("delayedPushHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Secret == "" || req.Secret != secretPrefix(s.channelSecret) {
		slog.Warn("delayedPushHandler rejected secret")
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid secret"))
		return
	}
	if req.UserID == "" || len(req.Messages) == 0 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("userId and messages are required"))
		return
	}
	if s.pusher == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Push transport not configured"))
		return
	}
	delay := req.DelaySec
	if delay < 0 {
		delay = 0
	}
	if delay > maxDelaySeconds {
		delay = maxDelaySeconds
	}

	jobID := util.GenerateRandomID("dp_", 16)
	slog.Debug("delayedPushHandler scheduled", "job_id", jobID, "user_id", req.UserID, "delay_sec", delay)

	go func(req delayedPushRequest, delay int) {
		time.Sleep(time.Duration(delay) * time.Second)
		if err := s.pusher.PushMessage(context.Background(), req.UserID, req.Messages); err != nil {
			slog.Error("delayedPushHandler push failed", "job_id", jobID, "user_id", req.UserID, "error", err)
		}
	}(req, delay)

	writeJSONResponse(w, http.StatusAccepted, models.Accepted("Push scheduled"))
}

// secretPrefix mirrors the truncation done by the scheduling client.
func secretPrefix(secret string) string {
	if len(secret) > 16 {
		return secret[:16]
	}
	return secret
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"service": "lineassist"}))
}
