// Package config loads the quizbot configuration: the shared core sections
// plus the quiz and database sections.
package config

import (
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	"github.com/m3rciful/quizbot/core/database"
	"github.com/m3rciful/quizbot/quiz/conversation"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "config.yaml"

// QuizConfig holds the quiz-specific settings.
type QuizConfig struct {
	StartCommand  string `yaml:"start_command" envconfig:"QUIZ_START_COMMAND"`
	CancelCommand string `yaml:"cancel_command" envconfig:"QUIZ_CANCEL_COMMAND"`
	// CatalogPath overrides the embedded catalog with a YAML file.
	CatalogPath string `yaml:"catalog_path" envconfig:"QUIZ_CATALOG_PATH"`
	// TopLimit caps the leaderboard length.
	TopLimit int                `yaml:"top_limit" envconfig:"QUIZ_TOP_LIMIT"`
	Texts    conversation.Texts `yaml:"texts" ignored:"true"`
}

// AppConfig is the full configuration of the quiz bot.
type AppConfig struct {
	coreconfig.Config `yaml:",inline"`

	Quiz     QuizConfig      `yaml:"quiz"`
	Database database.Config `yaml:"database"`
}

// CoreConfig returns the embedded core configuration.
func (c *AppConfig) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads the YAML file at path, applies environment overrides and validates the result.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *AppConfig) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}

	q := &c.Quiz
	q.StartCommand = normalizeCommand(q.StartCommand, "/start")
	q.CancelCommand = normalizeCommand(q.CancelCommand, "/cancel")
	if q.StartCommand == q.CancelCommand {
		return fmt.Errorf("quiz.start_command and quiz.cancel_command must differ, both are %q", q.StartCommand)
	}
	if q.TopLimit <= 0 {
		q.TopLimit = 10
	}
	if err := q.Texts.Validate(); err != nil {
		return fmt.Errorf("quiz: %w", err)
	}
	q.Texts = q.Texts.Merge(conversation.DefaultTexts())
	return nil
}

func normalizeCommand(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	if !strings.HasPrefix(v, "/") {
		v = "/" + v
	}
	return strings.ToLower(v)
}
