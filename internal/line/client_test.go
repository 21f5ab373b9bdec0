package line

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yolo-japan/lineassist/internal/models"
)

type recordedRequest struct {
	path string
	auth string
	body map[string]any
}

func newTestClient(t *testing.T, status int, record *[]recordedRequest) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if len(raw) > 0 {
			json.Unmarshal(raw, &body)
		}
		*record = append(*record, recordedRequest{
			path: r.URL.Path,
			auth: r.Header.Get("Authorization"),
			body: body,
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(
		WithChannelToken("test-token"),
		WithChannelSecret("0123456789abcdefEXTRA"),
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c, srv
}

func TestReplyMessageSendsPayload(t *testing.T) {
	var reqs []recordedRequest
	c, _ := newTestClient(t, http.StatusOK, &reqs)

	msgs := []models.Message{models.NewTextMessage("hi")}
	if err := c.ReplyMessage(context.Background(), "token-1", msgs); err != nil {
		t.Fatalf("ReplyMessage failed: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
	got := reqs[0]
	if got.path != "/v2/bot/message/reply" {
		t.Errorf("unexpected path %q", got.path)
	}
	if got.auth != "Bearer test-token" {
		t.Errorf("unexpected auth header %q", got.auth)
	}
	if got.body["replyToken"] != "token-1" {
		t.Errorf("unexpected reply token %v", got.body["replyToken"])
	}
}

func TestReplyMessageTruncatesToFive(t *testing.T) {
	var reqs []recordedRequest
	c, _ := newTestClient(t, http.StatusOK, &reqs)

	msgs := make([]models.Message, 7)
	for i := range msgs {
		msgs[i] = models.NewTextMessage("m")
	}
	if err := c.ReplyMessage(context.Background(), "token-1", msgs); err != nil {
		t.Fatalf("ReplyMessage failed: %v", err)
	}
	sent := reqs[0].body["messages"].([]any)
	if len(sent) != models.MaxMessagesPerReply {
		t.Errorf("expected %d messages, got %d", models.MaxMessagesPerReply, len(sent))
	}
}

func TestPushMessageErrorsOnBadStatus(t *testing.T) {
	var reqs []recordedRequest
	c, _ := newTestClient(t, http.StatusBadRequest, &reqs)

	err := c.PushMessage(context.Background(), "user-1", []models.Message{models.NewTextMessage("hi")})
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestPushMessageSkipsEmpty(t *testing.T) {
	var reqs []recordedRequest
	c, _ := newTestClient(t, http.StatusOK, &reqs)

	if err := c.PushMessage(context.Background(), "user-1", nil); err != nil {
		t.Fatalf("PushMessage failed: %v", err)
	}
	if len(reqs) != 0 {
		t.Errorf("expected no request for empty batch, got %d", len(reqs))
	}
}

func TestShowLoadingAnimationClampsSeconds(t *testing.T) {
	var reqs []recordedRequest
	c, _ := newTestClient(t, http.StatusOK, &reqs)

	c.ShowLoadingAnimation(context.Background(), "user-1", 500)
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
	if got := reqs[0].body["loadingSeconds"].(float64); got != 60 {
		t.Errorf("expected clamp to 60, got %v", got)
	}
}

func TestLinkRichMenuBuildsPath(t *testing.T) {
	var reqs []recordedRequest
	c, _ := newTestClient(t, http.StatusOK, &reqs)

	if err := c.LinkRichMenu(context.Background(), "user-1", "menu-ja"); err != nil {
		t.Fatalf("LinkRichMenu failed: %v", err)
	}
	if reqs[0].path != "/v2/bot/user/user-1/richmenu/menu-ja" {
		t.Errorf("unexpected path %q", reqs[0].path)
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "")
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error without channel token")
	}
}
