package main

import (
	"context"
	"fmt"
	"html"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramDispatcher forwards new notifications to every chat linked to the
// notification's user.
type TelegramDispatcher struct {
	bot   messageSender
	store *Store
}

func NewTelegramDispatcher(bot messageSender, store *Store) *TelegramDispatcher {
	return &TelegramDispatcher{bot: bot, store: store}
}

func (d *TelegramDispatcher) Deliver(ctx context.Context, n Notification) {
	chats, err := d.store.ChatsForUser(ctx, n.UserID)
	if err != nil {
		log.Printf("error getting chats for user %v: %v", n.UserID, err)
		return
	}
	for _, chat := range chats {
		msg := tgbotapi.NewMessage(chat.TelegramChatID, formatNotification(n))
		msg.ParseMode = "HTML"
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Mark as read", fmt.Sprintf("/read %d", n.ID)),
			),
		)
		if _, err := d.bot.Send(msg); err != nil {
			log.Printf("error sending notification %v to chat %v: %v", n.ID, chat.TelegramChatID, err)
		}
	}
}

func formatNotification(n Notification) string {
	return fmt.Sprintf("🔔 <b>%v</b>\n%v", html.EscapeString(n.Title), html.EscapeString(n.Message))
}
