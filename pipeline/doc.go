// Package pipeline runs one voice message through the transcription and
// completion services and delivers the reply.
//
// A run uploads the audio under a fixed storage key and submits a job under
// a fixed job name. It polls the job to a terminal status, fetches the first
// transcript candidate and completes it. The reply goes to the originating
// conversation. Because the key and job name are shared by every run, the
// upload through fetch window is held under a Slot:
//
//   - LocalSlot queues runs inside one process (a one-wide bulkhead).
//   - redis.SlotLock serializes runs across replicas.
//
// Completion and delivery run outside the slot.
//
// Usage:
//
//	orch, err := pipeline.New(cfg, pipeline.Deps{
//	    Source:    source,
//	    Store:     store,
//	    Registry:  registry,
//	    Poller:    poller,
//	    Fetcher:   fetcher,
//	    Completer: completer,
//	    Slot:      pipeline.NewLocalSlot("transcription_job", 0),
//	}, log)
//	err = orch.Handle(ctx, pipeline.AudioEvent{ConversationID: "42", AudioURI: fileURL}, sink)
//
// Upload, submit and fetch are retried with exponential backoff, but only
// for TRANSFER_FAILED and REGISTRY_ERROR. Poll is bounded by its own timeout
// and attempt count and is not retried, nor is the completion.
package pipeline
