// Package transcription runs asynchronous speech-to-text jobs under a single
// fixed job name.
//
// Registry submits jobs (deleting any previous job with the same name first),
// Poller drives a job to a terminal status on an injected Clock, and Fetcher
// reads the result artifact and extracts the first transcript candidate.
//
//	h, err := reg.Submit(ctx, ref, "en-US")
//	uri, err := poller.Poll(ctx, h)
//	tr, err := fetcher.Fetch(ctx, uri)
//
// The backend itself is pluggable; transcription/awstranscribe implements
// it on Amazon Transcribe.
package transcription
