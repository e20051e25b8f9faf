// Package commands describes slash commands registered with the bot.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are wrapped with the admin check and never shown in the menu.
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}

// Visible reports whether the command belongs in the Telegram command menu.
func (c Command) Visible() bool {
	return !c.Hidden && !c.AdminOnly
}
