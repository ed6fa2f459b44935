package pipeline

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/httpclient"
)

// HTTPSource streams audio from http(s) URLs such as Telegram file links.
type HTTPSource struct {
	client *httpclient.Client
}

// NewHTTPSource creates a Source over client.
func NewHTTPSource(client *httpclient.Client) *HTTPSource {
	return &HTTPSource{client: client}
}

// Open starts the download. Failures are TRANSFER_FAILED and never carry
// the URL path, which holds the bot token for Telegram file links.
func (s *HTTPSource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	resp, err := s.client.DoStream(ctx, httpclient.Request{Method: http.MethodGet, Path: uri})
	if err != nil {
		return nil, errors.Transfer("download audio", redactURL(err, uri))
	}
	return resp.Body, nil
}

// redactedError keeps the chain for errors.Is while hiding the message of
// the wrapped error.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redactURL(err error, uri string) error {
	targets := []string{uri}
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) && urlErr.URL != uri {
		targets = append(targets, urlErr.URL)
	}

	msg := err.Error()
	redacted := msg
	for _, t := range targets {
		if t != "" {
			redacted = strings.ReplaceAll(redacted, t, hostOnly(t))
		}
	}
	if redacted == msg {
		return err
	}
	return &redactedError{msg: redacted, err: err}
}

func hostOnly(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<redacted>"
	}
	return u.Scheme + "://" + u.Host + "/<redacted>"
}
