package alert

import (
	"fmt"
	"time"

	"github.com/yourorg/camera-dashboard/internal/config"
	"github.com/yourorg/camera-dashboard/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

type AlertLevel string

const (
	AlertInfo    AlertLevel = "INFO"
	AlertWarning AlertLevel = "WARNING"
	AlertError   AlertLevel = "ERROR"
)

// sender is the subset of the bot API used here.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramAlerter struct {
	bot    sender
	chatID int64
}

var _ notify.Sink = (*TelegramAlerter)(nil)

func NewTelegramAlerter(cfg config.TelegramConfig) (*TelegramAlerter, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	log.Infof("Telegram bot authorized: @%s", bot.Self.UserName)

	return &TelegramAlerter{
		bot:    bot,
		chatID: cfg.ChatID,
	}, nil
}

func (ta *TelegramAlerter) SendAlert(level AlertLevel, title, message string) error {
	msg := tgbotapi.NewMessage(ta.chatID, formatAlert(level, title, message, time.Now()))
	msg.ParseMode = "Markdown"

	if _, err := ta.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send Telegram message: %w", err)
	}

	log.WithFields(log.Fields{
		"level": level,
		"title": title,
	}).Debug("Telegram alert sent")

	return nil
}

// Deliver forwards warning and error notifications; info and success stay local.
func (ta *TelegramAlerter) Deliver(n notify.Notification) error {
	switch n.Level {
	case notify.LevelError:
		return ta.SendAlert(AlertError, n.Title, n.Message)
	case notify.LevelWarning:
		return ta.SendAlert(AlertWarning, n.Title, n.Message)
	}
	return nil
}

func formatAlert(level AlertLevel, title, message string, at time.Time) string {
	emoji := "ℹ️"
	switch level {
	case AlertWarning:
		emoji = "⚠️"
	case AlertError:
		emoji = "🚨"
	}

	return fmt.Sprintf("%s *%s: %s*\n\n%s\n\n_Time: %s_",
		emoji,
		level,
		title,
		message,
		at.Format("2006-01-02 15:04:05"),
	)
}
