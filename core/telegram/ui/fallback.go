// Package ui holds the contract between the shared routers and a bot's fallback replies.
package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider exposes handlers used when incoming updates
// cannot be mapped to commands, callbacks, or expected input.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
	// RateLimited answers users throttled by the rate limit middleware.
	RateLimited() tele.HandlerFunc
}
