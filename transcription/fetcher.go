package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	apperrors "github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/httpclient"
	"github.com/kbukum/voicebot/storage"
)

// artifact is the subset of the result document that is read.
type artifact struct {
	Results *struct {
		Transcripts []struct {
			Transcript *string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

// Fetcher downloads result artifacts and extracts the first transcript.
type Fetcher struct {
	http     *httpclient.Client
	store    storage.Store
	maxBytes int64
}

// NewFetcher creates a fetcher. client serves http(s) URIs and store serves
// s3:// and file:// URIs; either may be nil if that scheme is never used.
func NewFetcher(client *httpclient.Client, store storage.Store, maxBytes int64) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResultBytes
	}
	return &Fetcher{http: client, store: store, maxBytes: maxBytes}
}

// Fetch downloads the artifact at uri and returns results.transcripts[0].
// The body is decoded as it streams in. Download failures are
// TRANSFER_FAILED; malformed or incomplete documents are PARSE_ERROR.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (Transcript, error) {
	body, err := f.open(ctx, uri)
	if err != nil {
		return Transcript{}, err
	}
	defer func() { _ = body.Close() }()

	var doc artifact
	if err := json.NewDecoder(storage.LimitReader(body, f.maxBytes)).Decode(&doc); err != nil {
		return Transcript{}, classifyDecodeError(err)
	}

	if doc.Results == nil {
		return Transcript{}, apperrors.Parse("missing results", nil)
	}
	if len(doc.Results.Transcripts) == 0 {
		return Transcript{}, apperrors.Parse("no transcript candidates", nil)
	}
	first := doc.Results.Transcripts[0].Transcript
	if first == nil {
		return Transcript{}, apperrors.Parse("missing transcript field", nil)
	}
	return Transcript{Text: *first}, nil
}

func (f *Fetcher) open(ctx context.Context, uri string) (io.ReadCloser, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, apperrors.Transfer("download", err)
	}

	switch u.Scheme {
	case "http", "https":
		if f.http == nil {
			return nil, apperrors.Transfer("download", errors.New("no http client configured"))
		}
		resp, err := f.http.DoStream(ctx, httpclient.Request{Method: http.MethodGet, Path: uri})
		if err != nil {
			return nil, apperrors.Transfer("download", err)
		}
		return resp.Body, nil
	case "s3", "file":
		if f.store == nil {
			return nil, apperrors.Transfer("download", fmt.Errorf("no store configured for %s uris", u.Scheme))
		}
		return f.store.Open(ctx, uri)
	default:
		return nil, apperrors.Transfer("download", fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
}

// classifyDecodeError separates bad documents from failed reads.
func classifyDecodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return apperrors.Parse("result exceeds size limit", err)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return apperrors.Parse("invalid json", err)
	default:
		return apperrors.Transfer("download", err)
	}
}
