// Package callbacks decodes the callback_data telebot puts on inline buttons.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// dataPrefix marks callback_data produced by telebot's unique-based buttons.
const dataPrefix = "\f"

// ParseCallbackData splits "\f<unique>|<payload>". Data without the
// prefix is treated as a bare unique.
func ParseCallbackData(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	unique, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, dataPrefix), "|")
	return strings.TrimSpace(unique), payload
}

// CallbackPayload returns the payload of the current callback. Handlers
// bound to a *tele.Btn already get Data stripped by telebot; the generic
// OnCallback route does not.
func CallbackPayload(c tele.Context) string {
	cb := c.Callback()
	switch {
	case cb == nil:
		return ""
	case cb.Unique != "":
		return cb.Data
	}
	_, payload := ParseCallbackData(cb)
	return payload
}
