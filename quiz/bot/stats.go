package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/quizbot/core/logger"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/quizbot/core/telegram/sender"
	"github.com/m3rciful/quizbot/quiz/results"
)

const (
	noResultsText   = "You have not finished a quiz yet. Send %s to play."
	emptyTopText    = "Nobody has finished the quiz yet."
	unavailableText = "Statistics are unavailable right now, try again later."
)

func (b *Bot) onStats(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	st, err := b.results.UserStats(ctx, user.ID)
	switch {
	case errors.Is(err, results.ErrNoResults):
		return tghelpers.SendText(c, fmt.Sprintf(noResultsText, b.cfg.Quiz.StartCommand))
	case err != nil:
		logger.Error(ctx, logger.CompResults, "stats.load",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, unavailableText)
	}
	return tghelpers.SendText(c, formatStats(st))
}

func (b *Bot) onTop(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	top, err := b.results.Top(ctx, b.cfg.Quiz.TopLimit)
	if err != nil {
		logger.Error(ctx, logger.CompResults, "top.load",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, unavailableText)
	}
	return tghelpers.SendText(c, formatTop(top))
}

func (b *Bot) onActive(c tele.Context) error {
	var sent tgsender.Stats
	if d := b.dispatcher.Load(); d != nil {
		sent = d.Stats()
	}
	text := fmt.Sprintf("Active sessions: %d\nQuestions: %d\nMessages sent: %d (retried %d, failed %d, queued %d)",
		b.engine.Store().Active(), b.engine.Catalog().Size(), sent.Sent, sent.Retried, sent.Failed, sent.Queued)
	return tghelpers.SendText(c, text)
}

func formatStats(st results.Stats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Quizzes finished: %d\n", st.Runs)
	fmt.Fprintf(&sb, "Best: %d/%d (%d%%)\n", st.Best.Score, st.Best.Total, st.Best.Percent())
	fmt.Fprintf(&sb, "Last: %d/%d on %s", st.Last.Score, st.Last.Total, st.Last.FinishedAt.UTC().Format("2006-01-02 15:04 UTC"))
	return sb.String()
}

func formatTop(top []results.Result) string {
	if len(top) == 0 {
		return emptyTopText
	}
	var sb strings.Builder
	sb.WriteString("Leaderboard\n")
	for i, r := range top {
		fmt.Fprintf(&sb, "\n%d. %s: %d/%d (%d%%)", i+1, r.Username, r.Score, r.Total, r.Percent())
	}
	return sb.String()
}
