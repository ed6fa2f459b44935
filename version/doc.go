// Package version exposes build information.
//
//	go build -ldflags "-X github.com/kbukum/voicebot/version.Version=1.2.0" ./cmd/voicebot
package version
