package telegrambot

import (
	"context"
	"fmt"
	"strconv"

	"pricewatch-backend/lib/botapi"
)

// Notifier delivers tracker notifications over the same bot, user ids
// in the engine are Telegram chat ids in decimal form.
type Notifier struct {
	api *botapi.Client
}

func NewNotifier(api *botapi.Client) Notifier {
	return Notifier{api: api}
}

func (n Notifier) Notify(ctx context.Context, userId, text string) error {
	chatId, err := strconv.ParseInt(userId, 10, 64)
	if err != nil {
		return fmt.Errorf("user id is not a chat id: %w", err)
	}
	return n.api.SendMessage(ctx, chatId, text, nil)
}
