// Package bot connects the quiz engine to Telegram.
//
// Commands and button presses are turned into conversation events here and
// nowhere else; outcomes are rendered back as messages, edits and callback
// answers.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/quizbot/core/logger"
	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/callbacks"
	"github.com/m3rciful/quizbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/core/telegram/keyboard"
	"github.com/m3rciful/quizbot/core/telegram/router"
	tgsender "github.com/m3rciful/quizbot/core/telegram/sender"
	quizconfig "github.com/m3rciful/quizbot/quiz/config"
	"github.com/m3rciful/quizbot/quiz/conversation"
	"github.com/m3rciful/quizbot/quiz/results"
)

// CallbackUnique routes every quiz button to the bot.
const CallbackUnique = "quiz"

const recordTimeout = 5 * time.Second

// Bot is the Telegram front end of the quiz.
type Bot struct {
	cfg     *quizconfig.AppConfig
	engine  *conversation.Engine
	results results.Store

	dispatcher atomic.Pointer[tgsender.Dispatcher]

	// recMu orders recording.Add against Wait; after Wait no new writes start.
	recMu     sync.Mutex
	recClosed bool
	recording sync.WaitGroup
}

// New wires the bot. results may be nil to disable statistics.
func New(cfg *quizconfig.AppConfig, engine *conversation.Engine, store results.Store) *Bot {
	return &Bot{cfg: cfg, engine: engine, results: store}
}

// Registry builds the command and callback table of the bot.
func (b *Bot) Registry() *tg.Registry {
	reg := tg.NewRegistry()
	reg.RegisterCommand(b.cfg.Quiz.StartCommand, commands.Command{
		Handler:     b.onStart,
		Description: "Start the quiz",
	})
	reg.RegisterCommand(b.cfg.Quiz.CancelCommand, commands.Command{
		Handler:     b.onCancel,
		Description: "Cancel the current quiz",
	})
	if b.results != nil {
		reg.RegisterCommand("/stats", commands.Command{
			Handler:     b.onStats,
			Description: "Your quiz results",
		})
		reg.RegisterCommand("/top", commands.Command{
			Handler:     b.onTop,
			Description: "Leaderboard",
		})
	}
	if b.cfg.Telegram.AdminID != 0 {
		reg.RegisterCommand("/active", commands.Command{
			Handler:     b.onActive,
			Description: "Active quiz sessions",
			AdminOnly:   true,
			Hidden:      true,
		})
	}
	_ = reg.RegisterCallback(CallbackUnique, b.onCallback)
	return reg
}

// TelegramRunOptions assembles routes, middlewares and lifecycle hooks.
func (b *Bot) TelegramRunOptions() (tg.RunOptions, error) {
	core := b.cfg.CoreConfig()
	reg := b.Registry()

	cmdOpts := router.CommandRouteOptions{AdminID: core.Telegram.AdminID}
	routes := router.CommandRoutes(reg, cmdOpts)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{Commands: cmdOpts})...)

	return tg.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(core, b.rateLimitHooks()),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			b.dispatcher.Store(rt.Dispatcher)
			logger.Info(ctx, logger.CompBot, "quiz.ready",
				slog.Int("questions", b.engine.Catalog().Size()),
				slog.String("start_command", b.cfg.Quiz.StartCommand),
				slog.Bool("stats", b.results != nil),
			)
			return nil
		},
	}, nil
}

// Wait blocks until pending result writes finish or ctx ends.
// Runs finishing after Wait was called are not recorded.
func (b *Bot) Wait(ctx context.Context) error {
	b.recMu.Lock()
	b.recClosed = true
	b.recMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.recording.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bot) onStart(c tele.Context) error {
	return b.dispatch(c, conversation.StartCommandEvent())
}

func (b *Bot) onCancel(c tele.Context) error {
	return b.dispatch(c, conversation.CancelEvent())
}

func (b *Bot) onCallback(c tele.Context) error {
	token := callbacks.CallbackPayload(c)
	ev, ok := conversation.ParseToken(token)
	if !ok {
		logger.Debug(tghelpers.BuildContext(c), logger.CompBot, "token.unknown",
			slog.String("outcome", "ignored"),
			slog.String("token", logger.SanitizeLimit(token, 64)),
		)
		return tghelpers.Answer(c, "")
	}
	return b.dispatch(c, ev)
}

func (b *Bot) rateLimitHooks() tg.RateLimitHooks {
	return tg.RateLimitHooks{OnLimited: b.onRateLimited, Exempt: b.isSessionCommand}
}

func (b *Bot) onRateLimited(c tele.Context) error {
	return tghelpers.Answer(c, "")
}

// isSessionCommand reports whether c carries the start or cancel command.
// Those change session state and are never rate limited.
func (b *Bot) isSessionCommand(c tele.Context) bool {
	if c.Callback() != nil {
		return false
	}
	msg := c.Message()
	if msg == nil {
		return false
	}
	name, _, _ := strings.Cut(strings.TrimSpace(msg.Text), " ")
	name, _, _ = strings.Cut(name, "@")
	name = strings.ToLower(name)
	return name == b.cfg.Quiz.StartCommand || name == b.cfg.Quiz.CancelCommand
}

// dispatch feeds one event to the engine and renders the outcome.
func (b *Bot) dispatch(c tele.Context, ev conversation.Event) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	out := b.engine.Handle(ctx, user.ID, ev)
	if out.Finished != nil {
		b.record(ctx, user, *out.Finished)
	}
	return render(c, out.Reply)
}

func render(c tele.Context, reply *conversation.Reply) error {
	if reply == nil {
		return tghelpers.Answer(c, "")
	}
	markup := replyMarkup(reply.Buttons)
	if c.Callback() != nil {
		if err := tghelpers.Answer(c, reply.Feedback); err != nil {
			logger.Warn(tghelpers.BuildContext(c), logger.CompBot, "callback.answer",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
		return tghelpers.EditOrSendText(c, reply.Text, markup)
	}
	text := reply.Text
	if reply.Feedback != "" {
		text = reply.Feedback + "\n\n" + text
	}
	if markup == nil {
		return tghelpers.SendText(c, text)
	}
	return tghelpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: markup})
}

func replyMarkup(buttons []conversation.Button) *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, len(buttons))
	for i, btn := range buttons {
		btns[i] = keyboard.InlineBtn{Text: btn.Label, Unique: CallbackUnique, Data: btn.Token}
	}
	return keyboard.InlineButtons(btns)
}

// record stores a finished run in the background.
func (b *Bot) record(ctx context.Context, user *tele.User, res conversation.Result) {
	if b.results == nil {
		return
	}
	r := results.NewResult(user.ID, displayName(user), res.Score, res.Total)
	b.recMu.Lock()
	if b.recClosed {
		b.recMu.Unlock()
		logger.Warn(ctx, logger.CompResults, "result.record",
			slog.String("status", "skipped"),
			slog.String("reason", "shutting_down"),
			slog.Int64("user_id", user.ID),
		)
		return
	}
	b.recording.Add(1)
	b.recMu.Unlock()
	go func() {
		defer b.recording.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()
		err := b.results.Record(rctx, r)
		if err != nil {
			logger.Error(rctx, logger.CompResults, "result.record",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
			return
		}
		logger.Debug(rctx, logger.CompResults, "result.record",
			slog.String("status", "ok"),
			slog.String("id", r.ID.String()),
			slog.Int("score", r.Score),
			slog.Int("total", r.Total),
		)
	}()
}

func displayName(u *tele.User) string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	}
	return "anonymous"
}
