package helpers

import tele "gopkg.in/telebot.v4"

const answeredKey = "cb_answered"

// Answer acknowledges the current callback query. Only the first call per
// update reaches Telegram; later calls are no-ops.
func Answer(c tele.Context, text string) error {
	if c == nil || c.Callback() == nil || Answered(c) {
		return nil
	}
	c.Set(answeredKey, true)
	if text == "" {
		return c.Respond()
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}

// Answered reports whether Answer already ran for this update.
func Answered(c tele.Context) bool {
	v, _ := c.Get(answeredKey).(bool)
	return v
}
