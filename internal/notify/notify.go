// Package notify delivers fired reminders to the user.
package notify

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"timecast/internal/alarm"
	appLog "timecast/internal/log"
)

// Notifier shows a titled message to the user.
type Notifier interface {
	Notify(title, message string) error
}

// Send shows a desktop notification. On macOS it uses osascript, on Linux
// notify-send. Other platforms are silently ignored.
func Send(title, message string) error {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		return exec.Command("osascript", "-e", script).Run()
	case "linux":
		return exec.Command("notify-send", title, message).Run()
	default:
		return nil
	}
}

// Desktop is the Notifier backed by Send.
type Desktop struct{}

func (Desktop) Notify(title, message string) error { return Send(title, message) }

// Telegram posts notifications to one chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram authenticates the bot. endpoint is the Bot API URL template
// ("https://api.telegram.org/bot%s/%s"); empty selects the default.
func NewTelegram(token string, chatID int64, endpoint string) (*Telegram, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram login: %w", err)
	}
	appLog.Info("telegram notifier ready", "bot", bot.Self.UserName, "chat", chatID)
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Notify(title, message string) error {
	msg := tgbotapi.NewMessage(t.chatID, title+"\n"+message)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("notify: telegram send: %w", err)
	}
	return nil
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(title, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReminderText renders a fired alarm payload.
func ReminderText(p alarm.Payload) (title, body string) {
	body = p.Description
	if body == "" {
		body = "Starting soon"
	}
	return p.Title, body
}

// Deliver adapts n to the alarm facility's delivery hook.
func Deliver(n Notifier) alarm.DeliverFunc {
	return func(p alarm.Payload) error {
		title, body := ReminderText(p)
		return n.Notify(title, body)
	}
}
