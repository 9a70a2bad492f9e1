package notify

import (
	"dumpkeep/internal/config"
	"dumpkeep/internal/logger"
)

// BuildNotifier assembles the configured channels into one Notifier, or nil
// when nothing is configured.
func BuildNotifier(cfg config.Notifications, l *logger.Logger) Notifier {
	var notifiers []Notifier

	if cfg.Email.Enabled {
		notifiers = append(notifiers, NewEmailNotifier(
			cfg.Email.Host,
			cfg.Email.Port,
			cfg.Email.User,
			cfg.Email.Password,
			cfg.Email.From,
			cfg.Email.To,
		))
	}

	if cfg.Telegram.Enabled {
		notifiers = append(notifiers, NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}

	for _, w := range cfg.Webhooks {
		if w.URL != "" {
			notifiers = append(notifiers, NewWebhookNotifier(w.URL, w.Method, w.Template, w.Headers))
		}
	}

	if len(notifiers) == 0 {
		return nil
	}
	if len(notifiers) == 1 {
		return notifiers[0]
	}
	return &MultiNotifier{Notifiers: notifiers, Logger: l}
}
