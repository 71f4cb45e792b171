// Command quizbot runs the multiple-choice quiz Telegram bot.
package main

import (
	"context"
	"fmt"
	"log"

	corecmd "github.com/m3rciful/quizbot/core/cmd"
	"github.com/m3rciful/quizbot/quiz/bot"
	quizconfig "github.com/m3rciful/quizbot/quiz/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: quizconfig.DefaultPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return quizconfig.Load(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			appCfg, ok := cfg.(*quizconfig.AppConfig)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return bot.Bootstrap(ctx, appCfg)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
