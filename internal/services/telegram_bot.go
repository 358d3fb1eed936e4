package services

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender — то, что нужно хендлерам от бота. В тестах подменяется.
type TelegramSender interface {
	SendMessage(chatID int64, text string) error
	SendReplyKeyboard(chatID int64, text string, keyboard [][]string) error
}

// TelegramService — обёртка над Bot API. Все сообщения в HTML parse mode.
type TelegramService struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramService(botToken string) (*TelegramService, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	log.Printf("[tg] authorized as @%s", bot.Self.UserName)
	return &TelegramService{bot: bot}, nil
}

func (t *TelegramService) SendMessage(chatID int64, text string) error {
	if t == nil || t.bot == nil || chatID == 0 {
		log.Printf("[tg][skip] bot or chatID empty (bot? %v chatID=%d)", t != nil && t.bot != nil, chatID)
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("[tg][send][err] chatID=%d err=%v", chatID, err)
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	return nil
}

// SendReplyKeyboard — сообщение с обычной клавиатурой под строкой ввода.
func (t *TelegramService) SendReplyKeyboard(chatID int64, text string, keyboard [][]string) error {
	if t == nil || t.bot == nil || chatID == 0 {
		log.Printf("[tg][skip] bot or chatID empty (bot? %v chatID=%d)", t != nil && t.bot != nil, chatID)
		return nil
	}

	var rows [][]tgbotapi.KeyboardButton
	for _, row := range keyboard {
		var r []tgbotapi.KeyboardButton
		for _, label := range row {
			r = append(r, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, r)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(rows...)

	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("[tg][send+kb][err] chatID=%d err=%v", chatID, err)
		return fmt.Errorf("telegram sendMessage(with kb): %w", err)
	}
	return nil
}

func (t *TelegramService) SetWebhook(url string) error {
	if t == nil || t.bot == nil || url == "" {
		return nil
	}
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("telegram webhook config: %w", err)
	}
	if _, err := t.bot.Request(wh); err != nil {
		return fmt.Errorf("telegram setWebhook: %w", err)
	}
	log.Printf("[tg][setWebhook] url=%s", url)
	return nil
}
