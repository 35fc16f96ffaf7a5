// Package telegrambot is the chat frontend of the tracker: it turns
// Telegram commands and button presses into engine operations and
// renders the engine's answers back as messages and inline keyboards.
package telegrambot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"pricewatch-backend/lib/botapi"
	"pricewatch-backend/lib/scrapers/ekatalog"
	"pricewatch-backend/services/tracker"

	"github.com/antzucaro/matchr"
	"github.com/mazen160/go-random"
)

const usageText = "Hi! Use /add <item_link> to start tracking item price.\n" +
	"Use /list to show tracked items"

// minimum Jaro-Winkler similarity for /delete <name> to accept a match
const deleteMatchThreshold = 0.85

type Bot struct {
	api     *botapi.Client
	tracker *tracker.Service
	// random id distinguishing this poller's log lines across restarts
	session string
}

func New(api *botapi.Client, service *tracker.Service) *Bot {
	session, err := random.String(8)
	if err != nil {
		session = "unknown"
	}
	return &Bot{
		api:     api,
		tracker: service,
		session: session,
	}
}

// long-polls for updates until ctx is cancelled. poll errors back off
// and retry, they never kill the loop.
func (b *Bot) Run(ctx context.Context) {
	slog.InfoContext(ctx, "bot started", "session", b.session)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := b.api.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.WarnContext(ctx, "get updates", "session", b.session, "err", err)
			time.Sleep(time.Second * 5)
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update botapi.Update) {
	switch {
	case update.Message != nil && strings.HasPrefix(update.Message.Text, "/"):
		b.handleCommand(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *botapi.Message) {
	chatId := msg.Chat.ID
	userId := strconv.FormatInt(chatId, 10)

	fields := strings.Fields(msg.Text)
	command, _, _ := strings.Cut(fields[0], "@")

	switch command {
	case "/start", "/help":
		b.reply(ctx, chatId, usageText, nil)
	case "/add":
		if len(fields) < 2 {
			b.reply(ctx, chatId, "Usage: /add <item_link>", nil)
			return
		}
		b.addItem(ctx, chatId, userId, fields[1])
	case "/list":
		slog.InfoContext(ctx, "show item list", "user", userId)
		items := b.tracker.ListTracking(ctx, userId)
		if len(items) == 0 {
			b.reply(ctx, chatId, "There are no items you tracking", nil)
			return
		}
		b.reply(ctx, chatId, "Tracking items:", itemsKeyboard(items))
	case "/delete":
		if len(fields) < 2 {
			b.reply(ctx, chatId, "Usage: /delete <item_name>", nil)
			return
		}
		b.deleteByName(ctx, chatId, userId, strings.Join(fields[1:], " "))
	default:
		b.reply(ctx, chatId, usageText, nil)
	}
}

func (b *Bot) addItem(ctx context.Context, chatId int64, userId, link string) {
	slog.InfoContext(ctx, "trying to add new item", "user", userId)

	_, err := b.tracker.AddTracking(ctx, userId, link)
	switch {
	case errors.Is(err, tracker.ErrInvalidLink):
		b.reply(ctx, chatId, "Incorrect link", nil)
	case errors.Is(err, ekatalog.ErrItemNotFound):
		b.reply(ctx, chatId, "Item not found", nil)
	case errors.Is(err, tracker.ErrAlreadyTracking):
		b.reply(ctx, chatId, "You are already tracking this item", nil)
	case err != nil:
		slog.WarnContext(ctx, "add tracking", "user", userId, "err", err)
		b.reply(ctx, chatId, "Something went wrong, please try again later", nil)
	default:
		b.reply(ctx, chatId, "Item added to tracking", nil)
	}
}

func (b *Bot) deleteByName(ctx context.Context, chatId int64, userId, name string) {
	items := b.tracker.ListTracking(ctx, userId)
	item, ok := matchTrackedItem(items, name)
	if !ok {
		b.reply(ctx, chatId, "No tracked item has a similar name", nil)
		return
	}

	err := b.tracker.RemoveTracking(ctx, userId, item.ItemId)
	if err != nil {
		slog.WarnContext(ctx, "remove tracking", "user", userId, "item", item.ItemId, "err", err)
		b.reply(ctx, chatId, "Something went wrong, please try again later", nil)
		return
	}
	b.reply(ctx, chatId, fmt.Sprintf("Stopped tracking %s", item.ItemName), nil)
}

func (b *Bot) handleCallback(ctx context.Context, query *botapi.CallbackQuery) {
	userId := strconv.FormatInt(query.From.ID, 10)

	err := b.api.AnswerCallbackQuery(ctx, query.ID)
	if err != nil {
		slog.WarnContext(ctx, "answer callback", "user", userId, "err", err)
	}
	if query.Message == nil {
		return
	}
	chatId := query.Message.Chat.ID
	messageId := query.Message.MessageID

	switch {
	case strings.HasPrefix(query.Data, "item_"):
		itemId := strings.TrimPrefix(query.Data, "item_")
		slog.InfoContext(ctx, "checking item info", "user", userId, "item", itemId)

		rec, err := b.tracker.InspectTracking(ctx, userId, itemId)
		if err != nil {
			b.edit(ctx, chatId, messageId, "This item is no longer tracked", nil)
			return
		}
		b.edit(ctx, chatId, messageId, formatItemInfo(rec), infoKeyboard(itemId))

	case query.Data == "back":
		b.edit(ctx, chatId, messageId, "Tracking items:", itemsKeyboard(b.tracker.ListTracking(ctx, userId)))

	case strings.HasPrefix(query.Data, "delete_"):
		itemId := strings.TrimPrefix(query.Data, "delete_")
		slog.InfoContext(ctx, "deleting item", "user", userId, "item", itemId)

		err := b.tracker.RemoveTracking(ctx, userId, itemId)
		if err != nil && !errors.Is(err, tracker.ErrNotTracking) {
			slog.WarnContext(ctx, "remove tracking", "user", userId, "item", itemId, "err", err)
		}

		items := b.tracker.ListTracking(ctx, userId)
		if len(items) == 0 {
			b.edit(ctx, chatId, messageId, "Now you are not tracking any items", nil)
			return
		}
		b.edit(ctx, chatId, messageId, "Tracking items:", itemsKeyboard(items))
	}
}

func (b *Bot) reply(ctx context.Context, chatId int64, text string, markup *botapi.InlineKeyboardMarkup) {
	err := b.api.SendMessage(ctx, chatId, text, markup)
	if err != nil {
		slog.WarnContext(ctx, "send message", "chat", chatId, "err", err)
	}
}

func (b *Bot) edit(ctx context.Context, chatId, messageId int64, text string, markup *botapi.InlineKeyboardMarkup) {
	err := b.api.EditMessageText(ctx, chatId, messageId, text, markup)
	if err != nil {
		slog.WarnContext(ctx, "edit message", "chat", chatId, "err", err)
	}
}

func itemsKeyboard(items []tracker.TrackedItem) *botapi.InlineKeyboardMarkup {
	keyboard := make([][]botapi.InlineKeyboardButton, 0, len(items))
	for _, item := range items {
		keyboard = append(keyboard, []botapi.InlineKeyboardButton{{
			Text:         item.ItemName,
			CallbackData: "item_" + item.ItemId,
		}})
	}
	return &botapi.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}

func infoKeyboard(itemId string) *botapi.InlineKeyboardMarkup {
	return &botapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]botapi.InlineKeyboardButton{{
			{Text: "◀️ Back", CallbackData: "back"},
			{Text: "Delete ❌", CallbackData: "delete_" + itemId},
		}},
	}
}

func formatItemInfo(rec tracker.TrackingRecord) string {
	lastCheck := "never"
	if !rec.LastCheck.IsZero() {
		lastCheck = rec.LastCheck.Format("02/01/2006, 15:04:05")
	}
	shop := rec.BestShopName
	if shop == "" {
		shop = "No shops"
	}
	return fmt.Sprintf(
		"--- %s info --- \n\n"+
			"Last check time: %s\n"+
			"Lowest price: %d руб.\n"+
			"Shop with that price: %s",
		rec.ItemName, lastCheck, rec.LowestPrice, shop,
	)
}

// picks the tracked item whose name most resembles the query, used by
// /delete so users don't have to paste exact display names
func matchTrackedItem(items []tracker.TrackedItem, name string) (tracker.TrackedItem, bool) {
	var best tracker.TrackedItem
	bestScore := 0.0
	for _, item := range items {
		score := matchr.JaroWinkler(
			strings.ToLower(item.ItemName),
			strings.ToLower(name),
			false,
		)
		if score > bestScore {
			bestScore = score
			best = item
		}
	}
	return best, bestScore >= deleteMatchThreshold
}
