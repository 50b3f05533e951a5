package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var botCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Show help"},
	{Command: "link", Description: "Link this chat to your account: /link <user id> <secret>"},
	{Command: "unlink", Description: "Stop receiving notifications in this chat"},
	{Command: "unread", Description: "List unread notifications"},
	{Command: "readall", Description: "Mark all notifications as read"},
}

type BotHandler struct {
	bot        messageSender
	store      *Store
	linkSecret string
}

func NewBotHandler(bot messageSender, store *Store, linkSecret string) *BotHandler {
	return &BotHandler{bot: bot, store: store, linkSecret: linkSecret}
}

func (h *BotHandler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	if _, err := h.bot.Send(msg); err != nil {
		log.Printf("error replying to chat %v: %v", chatID, err)
	}
}

func (h *BotHandler) sendError(chatID int64, err error) {
	log.Printf("sending error: %v", err)
	h.reply(chatID, html.EscapeString(fmt.Sprintf("Error: %v", err)))
}

func (h *BotHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	var command, args, userName string
	var chatID int64

	if update.Message != nil {
		command = update.Message.Command()
		args = update.Message.CommandArguments()
		chatID = update.Message.Chat.ID
		if update.Message.From != nil {
			userName = update.Message.From.UserName
		}
	} else if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
		split := strings.SplitN(update.CallbackQuery.Data, " ", 2)
		command = strings.TrimPrefix(split[0], "/")
		if len(split) > 1 {
			args = split[1]
		}
		chatID = update.CallbackQuery.Message.Chat.ID
		if update.CallbackQuery.From != nil {
			userName = update.CallbackQuery.From.UserName
		}
	} else {
		return
	}
	if command == "" {
		return
	}
	log.Printf("[%v] command: %v, args: %v", chatID, command, args)
	args = strings.TrimSpace(args)

	switch command {
	case "start", "help":
		h.reply(chatID, "Link this chat with /link &lt;user id&gt; &lt;secret&gt; to receive subscription and loan reminders here.")
		return
	case "link":
		h.link(ctx, chatID, userName, args)
		return
	}

	userID, err := h.store.UserForChat(ctx, chatID)
	if err != nil {
		h.sendError(chatID, err)
		return
	}
	if userID == 0 {
		h.reply(chatID, "This chat is not linked yet. Use /link &lt;user id&gt; &lt;secret&gt;.")
		return
	}

	switch command {
	case "unlink":
		if err := h.store.UnlinkChat(ctx, chatID); err != nil {
			h.sendError(chatID, err)
			return
		}
		h.reply(chatID, "You will no longer receive notifications on this chat.")
	case "unread":
		h.listUnread(ctx, chatID, userID)
	case "read":
		id, err := strconv.ParseUint(args, 10, 64)
		if err != nil {
			h.sendError(chatID, fmt.Errorf("invalid notification id: %q", args))
			return
		}
		err = h.store.MarkRead(ctx, userID, uint(id))
		if errors.Is(err, ErrNotificationNotFound) {
			h.reply(chatID, fmt.Sprintf("Notification %d not found.", id))
			return
		}
		if err != nil {
			h.sendError(chatID, err)
			return
		}
		h.reply(chatID, fmt.Sprintf("Notification %d marked as read.", id))
	case "readall":
		count, err := h.store.MarkAllRead(ctx, userID)
		if err != nil {
			h.sendError(chatID, err)
			return
		}
		h.reply(chatID, fmt.Sprintf("Marked %d %v as read.", count, plural(int(count), "notification")))
	default:
		h.reply(chatID, "Unknown command.")
	}
}

func (h *BotHandler) link(ctx context.Context, chatID int64, userName, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		h.reply(chatID, "Usage: /link &lt;user id&gt; &lt;secret&gt;")
		return
	}
	if h.linkSecret == "" || fields[1] != h.linkSecret {
		log.Printf("wrong link secret from chat %v", chatID)
		h.reply(chatID, "Please provide a valid link secret.")
		return
	}
	userID, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil || userID == 0 {
		h.sendError(chatID, fmt.Errorf("invalid user id: %q", fields[0]))
		return
	}
	if err := h.store.LinkChat(ctx, uint(userID), chatID, userName); err != nil {
		h.sendError(chatID, err)
		return
	}
	h.reply(chatID, fmt.Sprintf("Chat linked to user %d. New notifications will be sent here.", userID))
}

func (h *BotHandler) listUnread(ctx context.Context, chatID int64, userID uint) {
	unread, err := h.store.ListNotifications(ctx, userID, true)
	if err != nil {
		h.sendError(chatID, err)
		return
	}
	if len(unread) == 0 {
		h.reply(chatID, "No unread notifications.")
		return
	}
	text := fmt.Sprintf("You have %d unread %v:\n", len(unread), plural(len(unread), "notification"))
	keyboard := tgbotapi.NewInlineKeyboardMarkup()
	for _, n := range unread {
		text += "\n" + formatNotification(n) + "\n"
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Read #%d", n.ID), fmt.Sprintf("/read %d", n.ID)),
		))
	}
	keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Mark all as read", "/readall"),
	))
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	if _, err := h.bot.Send(msg); err != nil {
		log.Printf("error replying to chat %v: %v", chatID, err)
	}
}

// runBot registers the command list and handles updates until ctx is done.
func runBot(ctx context.Context, api *tgbotapi.BotAPI, h *BotHandler) {
	if _, err := api.Request(tgbotapi.NewSetMyCommands(botCommands...)); err != nil {
		log.Printf("failed to set commands: %v", err)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, update)
		}
	}
}
