// Package keyboard builds inline keyboards whose buttons route through a
// single callback unique.
package keyboard

import (
	"slices"

	tele "gopkg.in/telebot.v4"
)

// InlineBtn is a data button. Telegram sends back "\f<Unique>|<Data>".
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

func (b InlineBtn) inline() tele.InlineButton {
	return tele.InlineButton{Unique: b.Unique, Text: b.Text, Data: b.Data}
}

// InlineButtons stacks the buttons one per row. nil for no buttons.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	return InlineButtonsNPerRow(buttons, 1)
}

// InlineButtonsNPerRow lays buttons out left to right, at most n per row.
// n below one means one per row. nil for no buttons.
func InlineButtonsNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	if len(buttons) == 0 {
		return nil
	}
	var rows [][]InlineBtn
	for row := range slices.Chunk(buttons, max(n, 1)) {
		rows = append(rows, row)
	}
	return InlineButtonsRows(rows...)
}

// InlineButtonsRows keeps the given row layout.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	keyboard := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tele.InlineButton, len(row))
		for i, btn := range row {
			line[i] = btn.inline()
		}
		keyboard = append(keyboard, line)
	}
	return &tele.ReplyMarkup{InlineKeyboard: keyboard}
}
