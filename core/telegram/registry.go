package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

var (
	errInvalidCommand  = errors.New("invalid command registration")
	errInvalidCallback = errors.New("invalid callback registration")
)

// Registry maps command names, aliases and callback uniques to handlers.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]commands.Command
	aliases   map[string]string
	callbacks map[string]tele.HandlerFunc

	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry returns an empty registry. Unknown callbacks are answered
// with a short notice until SetCallbackNotFound replaces the fallback.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return tghelpers.Answer(c, "Unsupported action")
		},
	}
}

// RegisterCommand adds a command keyed by its lowercased "/name". Invalid
// and duplicate registrations are logged and rejected.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	key := strings.ToLower(strings.TrimSpace(name))
	reason := ""
	switch {
	case cmd.Handler == nil || cmd.Description == "":
		reason = "invalid"
	case !strings.HasPrefix(key, "/") || len(key) < 2:
		reason = "no_slash_prefix"
	}
	if reason != "" {
		logRegistry(slog.LevelWarn, "register.command.skip", slog.String("name", name), slog.String("reason", reason))
		return fmt.Errorf("%w: %q (%s)", errInvalidCommand, name, reason)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.resolve(key); taken {
		logRegistry(slog.LevelWarn, "register.command.duplicate", slog.String("name", key))
		return fmt.Errorf("command already registered: %s", key)
	}
	r.commands[key] = cmd
	for _, alias := range cmd.Aliases {
		a := "/" + strings.TrimPrefix(strings.ToLower(strings.TrimSpace(alias)), "/")
		if _, taken := r.resolve(a); taken || a == "/" {
			logRegistry(slog.LevelWarn, "register.alias.skip", slog.String("name", key), slog.String("alias", alias))
			continue
		}
		r.aliases[a] = key
	}
	return nil
}

// resolve expects r.mu to be held.
func (r *Registry) resolve(name string) (string, bool) {
	if _, ok := r.commands[name]; ok {
		return name, true
	}
	key, ok := r.aliases[name]
	return key, ok
}

// LookupCommand resolves a name or alias, with or without the leading
// slash, to the canonical key.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	name = strings.ToLower(name)
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.resolve(name)
	if !ok {
		return "", commands.Command{}, false
	}
	return key, r.commands[key], true
}

// ListCommands returns commands sorted by name. visibleOnly drops hidden
// and admin-only entries.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.commands))
	for _, key := range slices.Sorted(maps.Keys(r.commands)) {
		meta := r.commands[key]
		if visibleOnly && !meta.InMenu() {
			continue
		}
		list = append(list, tele.Command{Text: key, Description: meta.Description})
	}
	return list
}

// Commands returns a snapshot of the registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// RegisterCallback maps a callback unique to its handler.
func (r *Registry) RegisterCallback(unique string, handler tele.HandlerFunc) error {
	if unique == "" || handler == nil {
		logRegistry(slog.LevelWarn, "register.callback.skip",
			slog.String("key", unique),
			slog.Bool("handler_nil", handler == nil),
		)
		return errInvalidCallback
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[unique]; exists {
		logRegistry(slog.LevelWarn, "register.callback.duplicate", slog.String("key", unique))
		return fmt.Errorf("callback already registered: %s", unique)
	}
	r.callbacks[unique] = handler
	return nil
}

func (r *Registry) GetCallback(unique string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[unique]
	return h, ok
}

func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback handles text that matches no command. nil disables it.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// SetupCommands publishes the visible commands to the Telegram menu. The
// Bot API wants names without the leading slash.
func SetupCommands(bot *tele.Bot, reg *Registry) {
	visible := reg.ListCommands(true)
	menu := make([]tele.Command, len(visible))
	for i, cmd := range visible {
		menu[i] = tele.Command{Text: strings.TrimPrefix(cmd.Text, "/"), Description: cmd.Description}
	}
	if err := bot.SetCommands(menu); err != nil {
		logRegistry(slog.LevelError, "register.commands.set_failed", slog.String("err", err.Error()))
		return
	}
	logRegistry(slog.LevelDebug, "register.commands.set", slog.Int("count", len(menu)))
}

func logRegistry(level slog.Level, event string, attrs ...slog.Attr) {
	logger.TWire.LogAttrs(context.Background(), level, event, attrs...)
}
