package main

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// appConfig holds the notifier's own settings. Backend configs are loaded
// only when their backend is selected.
type appConfig struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"SERVICE_NAME" envDefault:"notifier"`

	// Storage is memory, postgres, redis or mongo.
	Storage string `env:"NOTIFY_STORAGE" envDefault:"memory"`
	// Retention drops notifications after this age where the backend
	// supports it. Zero keeps them.
	Retention time.Duration `env:"NOTIFY_RETENTION" envDefault:"0s"`
	// PruneInterval is how often postgres prunes read notifications.
	PruneInterval time.Duration `env:"NOTIFY_PRUNE_INTERVAL" envDefault:"1h"`

	MailEnabled     bool   `env:"NOTIFY_MAIL_ENABLED" envDefault:"true"`
	TranslationsDir string `env:"NOTIFY_TRANSLATIONS_DIR"`
	DefaultLanguage string `env:"NOTIFY_DEFAULT_LANGUAGE" envDefault:"en"`

	// APIToken protects the ingress and feed routes when set.
	APIToken string `env:"NOTIFY_API_TOKEN"`

	// Recipients bounds the directory used to resolve queued recipients.
	Recipients int `env:"NOTIFY_RECIPIENT_CACHE" envDefault:"10000"`
}

type settings struct {
	app           appConfig
	notifications notifications.Config
	http          httpserver.Config
	queue         queue.Config
}

func loadSettings() (settings, error) {
	var s settings
	if err := config.Load(&s.app); err != nil {
		return s, fmt.Errorf("load app config: %w", err)
	}
	if err := config.Load(&s.notifications); err != nil {
		return s, fmt.Errorf("load notifications config: %w", err)
	}
	if err := config.Load(&s.http); err != nil {
		return s, fmt.Errorf("load http config: %w", err)
	}
	if err := config.Load(&s.queue); err != nil {
		return s, fmt.Errorf("load queue config: %w", err)
	}
	return s, nil
}
