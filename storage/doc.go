// Package storage is the blob store the pipeline uploads audio into and
// reads transcription artifacts back from.
//
// Backends register themselves by provider name; import the backend package
// for its side effect and build a Store with New:
//
//	import _ "github.com/kbukum/voicebot/storage/s3"
//
//	store, err := storage.New(cfg, awsCfg, log)
//	ref, err := store.Put(ctx, "audio/file.ogg", body, "audio/ogg")
//
// Keys are written in place. Putting the same key again replaces the object.
package storage
