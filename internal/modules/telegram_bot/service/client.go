package service

import (
	"context"

	"signal_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier — канал доставки сообщений.
type Notifier interface {
	SendMessage(ctx context.Context, msg tgbot.MessageConfig) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Telegram — обёртка над BotAPI.
type Telegram struct {
	bot *tgbot.BotAPI
}

func NewTelegram(token string) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	logger.Info("[TG] authorized as @%s", b.Self.UserName)
	return &Telegram{bot: b}, nil
}

func (t *Telegram) SendMessage(_ context.Context, msg tgbot.MessageConfig) error {
	_, err := t.bot.Send(msg)
	return err
}

func (t *Telegram) AnswerCallback(_ context.Context, callbackID, text string) error {
	_, err := t.bot.Request(tgbot.NewCallback(callbackID, text))
	return err
}

// Updates — long polling, если вебхук не настроен.
func (t *Telegram) Updates() tgbot.UpdatesChannel {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}
	return t.bot.GetUpdatesChan(u)
}

func (t *Telegram) Stop() {
	t.bot.StopReceivingUpdates()
}

// Stdout — заглушка без токена: всё уходит в лог.
type Stdout struct{}

func NewStdout() *Stdout { return &Stdout{} }

func (Stdout) SendMessage(_ context.Context, msg tgbot.MessageConfig) error {
	logger.Info("[TG] (stdout) chat=%d\n%s", msg.ChatID, msg.Text)
	return nil
}

func (Stdout) AnswerCallback(_ context.Context, callbackID, text string) error {
	logger.Debug("[TG] (stdout) callback %s: %s", callbackID, text)
	return nil
}
