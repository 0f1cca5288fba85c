package alert

import (
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yourorg/camera-dashboard/internal/notify"
)

type recordingBot struct {
	sent []tgbotapi.MessageConfig
}

func (b *recordingBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func TestDeliverForwardsOnlyWarningsAndErrors(t *testing.T) {
	bot := &recordingBot{}
	ta := &TelegramAlerter{bot: bot, chatID: 42}

	for _, level := range []notify.Level{notify.LevelInfo, notify.LevelSuccess, notify.LevelWarning, notify.LevelError} {
		if err := ta.Deliver(notify.Notification{Level: level, Title: string(level)}); err != nil {
			t.Fatalf("Deliver failed: %v", err)
		}
	}

	if len(bot.sent) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(bot.sent))
	}
	if bot.sent[0].ChatID != 42 {
		t.Errorf("Expected chat 42, got %d", bot.sent[0].ChatID)
	}
	if !strings.Contains(bot.sent[1].Text, "ERROR: error") {
		t.Errorf("Expected error alert text, got %q", bot.sent[1].Text)
	}
}

func TestFormatAlert(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got := formatAlert(AlertWarning, "Stream failed", "cam1", at)

	if !strings.HasPrefix(got, "⚠️ *WARNING: Stream failed*") {
		t.Errorf("Unexpected header: %q", got)
	}
	if !strings.Contains(got, "_Time: 2026-01-02 03:04:05_") {
		t.Errorf("Expected timestamp in %q", got)
	}
}
