package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/amishk599/jobsift/internal/model"
	"github.com/amishk599/jobsift/internal/ratelimit"
)

// Ensure TelegramNotifier implements model.Notifier.
var _ model.Notifier = (*TelegramNotifier)(nil)

// telegramMessageLimit is the Bot API maximum message length.
const telegramMessageLimit = 4096

// telegramSendDelay spaces consecutive sendMessage calls so multi-chunk
// digests stay under the Bot API per-chat rate.
const telegramSendDelay = 500 * time.Millisecond

// TelegramNotifier delivers digests and status messages through the Telegram
// Bot API. Progress messages are edited in place via editMessageText.
type TelegramNotifier struct {
	baseURL    string // https://api.telegram.org, overridable in tests
	token      string
	chatID     string
	format     DigestFormat
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
}

// NewTelegramNotifier returns a notifier posting to the given chat.
func NewTelegramNotifier(baseURL, token, chatID string, format DigestFormat, httpClient *http.Client, logger *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		baseURL:    baseURL,
		token:      token,
		chatID:     chatID,
		format:     format,
		httpClient: httpClient,
		limiter:    ratelimit.New(telegramSendDelay),
		logger:     logger,
	}
}

// SendDigest formats and delivers the digest, chunked under the transport
// limit. Returns an error only if ALL chunks fail; partial failures are
// logged.
func (t *TelegramNotifier) SendDigest(ctx context.Context, postings []model.JobPosting) error {
	if len(postings) == 0 {
		return nil
	}

	chunks := ChunkMessage(t.format.Format(postings), telegramMessageLimit)
	failures := 0
	for i, chunk := range chunks {
		if _, err := t.sendMessage(ctx, chunk); err != nil {
			t.logger.Error("digest chunk send failed", "part", i+1, "parts", len(chunks), "error", err)
			failures++
		}
	}

	if failures == len(chunks) {
		return fmt.Errorf("all %d digest chunks failed", failures)
	}
	t.logger.Info("digest sent", "postings", len(postings), "parts", len(chunks), "failed_parts", failures)
	return nil
}

// SendStatus delivers an informational status line.
func (t *TelegramNotifier) SendStatus(ctx context.Context, text string) error {
	_, err := t.sendMessage(ctx, "ℹ️ "+text)
	return err
}

// SendError delivers an error alert.
func (t *TelegramNotifier) SendError(ctx context.Context, text string) error {
	_, err := t.sendMessage(ctx, "❌ "+text)
	return err
}

// CreateProgressMessage posts the initial progress message and returns its
// message id as the edit handle.
func (t *TelegramNotifier) CreateProgressMessage(ctx context.Context, text string) (model.ProgressHandle, error) {
	id, err := t.sendMessage(ctx, text)
	if err != nil {
		return "", err
	}
	return model.ProgressHandle(strconv.FormatInt(id, 10)), nil
}

// UpdateProgressMessage edits the progress message in place. Edit failures
// are swallowed after logging; progress is cosmetic and the durable store
// stays authoritative.
func (t *TelegramNotifier) UpdateProgressMessage(ctx context.Context, handle model.ProgressHandle, text string) error {
	messageID, err := strconv.ParseInt(string(handle), 10, 64)
	if err != nil {
		return fmt.Errorf("bad progress handle %q: %w", handle, err)
	}

	payload := map[string]any{
		"chat_id":    t.chatID,
		"message_id": messageID,
		"text":       text,
	}
	if _, err := t.call(ctx, "editMessageText", payload); err != nil {
		t.logger.Debug("progress edit failed", "message_id", messageID, "error", err)
	}
	return nil
}

// sendMessage posts one message and returns its Telegram message id.
// Consecutive sends are spaced by the limiter.
func (t *TelegramNotifier) sendMessage(ctx context.Context, text string) (int64, error) {
	if err := t.limiter.Wait(ctx, "sendMessage"); err != nil {
		return 0, err
	}
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	return t.call(ctx, "sendMessage", payload)
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func (t *TelegramNotifier) call(ctx context.Context, method string, payload map[string]any) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read telegram response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, &model.HTTPError{StatusCode: resp.StatusCode, Err: fmt.Errorf("telegram %s", method)}
	}

	var tr telegramResponse
	if err := json.Unmarshal(respBytes, &tr); err != nil {
		return 0, fmt.Errorf("parse telegram response: %w", err)
	}
	if !tr.OK {
		return 0, fmt.Errorf("telegram %s: %s", method, tr.Description)
	}
	return tr.Result.MessageID, nil
}
