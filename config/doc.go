// Package config loads service configuration from a YAML file, an optional
// .env file and the process environment, in that order of precedence.
//
//	var cfg AppConfig
//	if err := config.LoadConfig("voicebot", &cfg); err != nil {
//	    return err
//	}
//
// Environment variables map onto nested keys by splitting on underscores,
// so TRANSCRIPTION_POLL_INTERVAL sets transcription.poll_interval.
package config
