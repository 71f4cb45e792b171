// Package commands describes slash commands kept in the registry.
package commands

import tele "gopkg.in/telebot.v4"

// Command is one slash command. Aliases are extra names resolved by the
// text route, written with or without the slash.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	Aliases     []string

	// AdminOnly commands run only for the configured admin and, like
	// Hidden ones, stay out of the Telegram command menu.
	AdminOnly bool
	Hidden    bool
}

// InMenu reports whether the command belongs in the public command menu.
func (c Command) InMenu() bool {
	return !c.Hidden && !c.AdminOnly
}
