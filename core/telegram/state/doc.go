// Package state keeps per-user conversation sessions for Telegram bots.
// Stores are generic over the session type so each bot owns its own schema;
// Memory is process-local, Redis survives restarts.
package state
