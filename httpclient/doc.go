// Package httpclient is the outbound HTTP layer shared by the messaging,
// completion and artifact-download paths.
//
// Client.Do buffers small JSON exchanges and classifies non-2xx answers
// into *Error values that keep the status code and body. Client.DoStream
// hands back the live body so large downloads are never held in memory.
// Retry, circuit breaking and rate limiting are opt-in per client.
//
//	client, _ := httpclient.New(httpclient.Config{
//	    BaseURL: "https://api.telegram.org",
//	    Timeout: 30 * time.Second,
//	})
//	resp, err := client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/getMe"})
package httpclient
