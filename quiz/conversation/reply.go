package conversation

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/m3rciful/quizbot/quiz/catalog"
)

// Button is one selectable option of an outbound message.
type Button struct {
	Label string
	Token string
}

// Reply is the outbound content for one handled event.
// Feedback is a short notice about the previous answer and may be empty.
type Reply struct {
	Feedback string
	Text     string
	Buttons  []Button
}

// Texts holds every user-facing string the engine emits.
type Texts struct {
	Welcome       string `yaml:"welcome"`
	StartButton   string `yaml:"start_button"`
	Farewell      string `yaml:"farewell"`
	Correct       string `yaml:"correct"`
	Incorrect     string `yaml:"incorrect"`
	Summary       string `yaml:"summary"`
	RestartButton string `yaml:"restart_button"`
	Restart       string `yaml:"restart"`
}

// DefaultTexts returns the stock English texts.
// Incorrect takes the correct option text; Summary takes score and total.
func DefaultTexts() Texts {
	return Texts{
		Welcome:       "Welcome to our quiz!\n\nWant to test your knowledge?\nPress 'Start quiz'.",
		StartButton:   "Start quiz",
		Farewell:      "Goodbye! Come back soon.",
		Correct:       "Correct!",
		Incorrect:     "Incorrect! Correct answer: %s",
		Summary:       "Quiz finished!\nYour score: %d/%d\n\nThanks for playing!",
		RestartButton: "Start again",
		Restart:       "This quiz is no longer active. Press the button to start again.",
	}
}

// Merge returns t with empty fields filled from base.
func (t Texts) Merge(base Texts) Texts {
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return Texts{
		Welcome:       pick(t.Welcome, base.Welcome),
		StartButton:   pick(t.StartButton, base.StartButton),
		Farewell:      pick(t.Farewell, base.Farewell),
		Correct:       pick(t.Correct, base.Correct),
		Incorrect:     pick(t.Incorrect, base.Incorrect),
		Summary:       pick(t.Summary, base.Summary),
		RestartButton: pick(t.RestartButton, base.RestartButton),
		Restart:       pick(t.Restart, base.Restart),
	}
}

// Validate checks the templated texts: Incorrect must hold exactly one %s
// and Summary exactly two %d. Empty fields are left to Merge.
func (t Texts) Validate() error {
	var errs []error
	if t.Incorrect != "" && !slices.Equal(formatVerbs(t.Incorrect), []byte("s")) {
		errs = append(errs, fmt.Errorf("texts.incorrect %q: want exactly one %%s for the correct answer", t.Incorrect))
	}
	if t.Summary != "" && !slices.Equal(formatVerbs(t.Summary), []byte("dd")) {
		errs = append(errs, fmt.Errorf("texts.summary %q: want exactly two %%d for score and total", t.Summary))
	}
	return errors.Join(errs...)
}

// formatVerbs lists the verbs of a fmt format string, skipping %% escapes.
// A dangling % yields '!'.
func formatVerbs(format string) []byte {
	var verbs []byte
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		for i < len(format) && strings.IndexByte("+-# 0123456789.", format[i]) >= 0 {
			i++
		}
		if i == len(format) {
			return append(verbs, '!')
		}
		if format[i] != '%' {
			verbs = append(verbs, format[i])
		}
	}
	return verbs
}

// orDefaults replaces templated texts that fail Validate with the stock ones.
func (t Texts) orDefaults() Texts {
	def := DefaultTexts()
	if (Texts{Incorrect: t.Incorrect}).Validate() != nil {
		t.Incorrect = def.Incorrect
	}
	if (Texts{Summary: t.Summary}).Validate() != nil {
		t.Summary = def.Summary
	}
	return t
}

func (t Texts) welcome() *Reply {
	return &Reply{
		Text:    t.Welcome,
		Buttons: []Button{{Label: t.StartButton, Token: TokenStartQuiz}},
	}
}

func (t Texts) farewell() *Reply {
	return &Reply{Text: t.Farewell}
}

func (t Texts) restartPrompt() *Reply {
	return &Reply{
		Text:    t.Restart,
		Buttons: []Button{{Label: t.RestartButton, Token: TokenStartQuiz}},
	}
}

func (t Texts) feedback(item catalog.Item, correct bool) string {
	if correct {
		return t.Correct
	}
	return fmt.Sprintf(t.Incorrect, item.CorrectText())
}

func (t Texts) summary(feedback string, score, total int) *Reply {
	return &Reply{
		Feedback: feedback,
		Text:     fmt.Sprintf(t.Summary, score, total),
		Buttons:  []Button{{Label: t.RestartButton, Token: TokenStartQuiz}},
	}
}

func question(item catalog.Item, feedback string) *Reply {
	buttons := make([]Button, len(item.Options))
	for i, opt := range item.Options {
		buttons[i] = Button{Label: opt, Token: AnswerToken(i)}
	}
	return &Reply{Feedback: feedback, Text: item.Prompt, Buttons: buttons}
}
