// Package server runs the bot's HTTP surface on Gin, served over HTTP/1.1
// and h2c on one port.
//
// The default stack is recovery, request id, body limit and request
// logging (which also feeds the request metrics). Default endpoints:
//
//   - GET /health: component health folded with component.Overall
//   - GET /version: build information
//
// In webhook mode the Telegram handler is mounted on the same engine.
package server
