// Package telegram connects the pipeline to the Telegram Bot API.
//
// Client wraps the Bot API methods the bot needs over httpclient/rest. It
// implements pipeline.Sink and pipeline.VoiceSink, so replies go straight
// back to the chat. Dispatcher turns updates into pipeline runs and answers
// /start. Updates arrive either from Poller (getUpdates long polling) or
// from WebhookHandler mounted on the HTTP server.
package telegram
