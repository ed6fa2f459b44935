package telegram

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/httpclient"
	"github.com/kbukum/voicebot/httpclient/rest"
	"github.com/kbukum/voicebot/resilience"
)

// Client calls the Telegram Bot API. Every failure is TRANSFER_FAILED and
// never mentions the bot token.
type Client struct {
	rest        *rest.Client
	token       string
	baseURL     string
	timeout     time.Duration
	pollTimeout time.Duration
}

// MaxRequestsPerSecond paces outbound Bot API calls under Telegram's
// per-bot limit.
const MaxRequestsPerSecond = 30

// breakerConfig opens after repeated outages. Client errors such as an
// unknown chat do not count.
func breakerConfig() *resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig("telegram")
	cfg.IsFailure = func(err error) bool {
		return httpclient.IsServerError(err) || httpclient.IsConnection(err) || httpclient.IsTimeout(err)
	}
	return &cfg
}

// NewClient creates a Bot API client.
func NewClient(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rc, err := rest.New(httpclient.Config{
		Name:    "telegram",
		BaseURL: cfg.BaseURL,
		// long polls hold the connection for PollTimeout
		Timeout:        cfg.PollTimeout + cfg.Timeout,
		CircuitBreaker: breakerConfig(),
		RateLimiter:    &resilience.RateLimiterConfig{Name: "telegram", Rate: MaxRequestsPerSecond},
	})
	if err != nil {
		return nil, err
	}
	return &Client{
		rest:        rc,
		token:       cfg.Token,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		timeout:     cfg.Timeout,
		pollTimeout: cfg.PollTimeout,
	}, nil
}

// GetMe checks the token and returns the bot user.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	return call[User](ctx, c, "getMe", nil, c.timeout)
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	secs := int(c.pollTimeout / time.Second)
	body := map[string]any{
		"offset":          offset,
		"timeout":         secs,
		"allowed_updates": []string{"message"},
	}
	return call[[]Update](ctx, c, "getUpdates", body, c.pollTimeout+c.timeout)
}

// GetFile resolves a file id to a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	return call[File](ctx, c, "getFile", map[string]string{"file_id": fileID}, c.timeout)
}

// FileURL is the download link for a path returned by GetFile.
func (c *Client) FileURL(filePath string) string {
	return c.baseURL + "/file/bot" + c.token + "/" + strings.TrimLeft(filePath, "/")
}

// SendText sends a text message to chatID.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	_, err := call[Message](ctx, c, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text}, c.timeout)
	return err
}

// SendVoice uploads audio to chatID. OGG files go out as voice notes,
// anything else (mp3 speech) as an audio file.
func (c *Client) SendVoice(ctx context.Context, chatID string, audio io.Reader, fileName string) error {
	method, field, contentType := "sendAudio", "audio", "audio/mpeg"
	switch strings.ToLower(path.Ext(fileName)) {
	case ".ogg", ".oga", ".opus":
		method, field, contentType = "sendVoice", "voice", "audio/ogg"
	}
	body := &httpclient.MultipartBody{
		Fields: map[string]string{"chat_id": chatID},
		Files: []httpclient.FileField{{
			FieldName:   field,
			FileName:    fileName,
			ContentType: contentType,
			Reader:      audio,
		}},
	}
	_, err := call[Message](ctx, c, method, body, c.timeout)
	return err
}

// SetWebhook registers url for push delivery.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	_, err := call[bool](ctx, c, "setWebhook", setWebhookRequest{
		URL:         url,
		SecretToken: secret,
		Allowed:     []string{"message"},
	}, c.timeout)
	return err
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := call[bool](ctx, c, "deleteWebhook", map[string]bool{"drop_pending_updates": false}, c.timeout)
	return err
}

func call[T any](ctx context.Context, c *Client, method string, body any, timeout time.Duration) (T, error) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := "/bot" + c.token + "/" + method
	var (
		resp *rest.Response[apiResponse[T]]
		err  error
	)
	if body == nil {
		resp, err = rest.Get[apiResponse[T]](ctx, c.rest, endpoint)
	} else {
		resp, err = rest.Post[apiResponse[T]](ctx, c.rest, endpoint, body)
	}
	if err != nil {
		if resp != nil && resp.Data.Description != "" {
			return zero, errors.Transfer(method, apiError(resp.Data.ErrorCode, resp.Data.Description)).
				WithDetail("status_code", resp.StatusCode)
		}
		return zero, errors.Transfer(method, c.redact(err))
	}
	if !resp.Data.OK {
		return zero, errors.Transfer(method, apiError(resp.Data.ErrorCode, resp.Data.Description))
	}
	return resp.Data.Result, nil
}

func apiError(code int, description string) error {
	return fmt.Errorf("telegram api error %d: %s", code, description)
}

// redact strips the token, which appears in every request URL.
func (c *Client) redact(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, c.token) {
		return err
	}
	return stderrors.New(strings.ReplaceAll(msg, c.token, "<token>"))
}
