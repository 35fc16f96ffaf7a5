// Package botapi is a minimal Telegram Bot API client covering the
// handful of methods the tracker's chat frontend needs: long-polled
// updates, plain and keyboard-bearing messages, message edits and
// callback acknowledgements.
package botapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pricewatch-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

type User struct {
	ID int64 `json:"id"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message"`
	Data    string   `json:"data"`
}

type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

type Client struct {
	http *resty.Client
}

// PollTimeout is the long-poll window passed to getUpdates.
const PollTimeout = 25 * time.Second

func NewClient(token string) *Client {
	client := resty.New()
	client.SetBaseURL("https://api.telegram.org/bot" + token)
	// must outlive the getUpdates long-poll window
	client.SetTimeout(PollTimeout + 10*time.Second)

	telemetry.InstrumentResty(client, "botapi/http")

	return &Client{http: client}
}

func (c *Client) call(ctx context.Context, method string, body any, result any) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(body).
		Post("/" + method)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	var env envelope
	err = json.Unmarshal(res.Body(), &env)
	if err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !env.OK {
		return fmt.Errorf("%s: %s", method, env.Description)
	}
	if result != nil {
		err = json.Unmarshal(env.Result, result)
		if err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// long-polls for updates after `offset`, blocking up to PollTimeout
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":  offset,
		"timeout": int(PollTimeout.Seconds()),
	}, &updates)
	if err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) SendMessage(ctx context.Context, chatId int64, text string, markup *InlineKeyboardMarkup) error {
	body := map[string]any{
		"chat_id": chatId,
		"text":    text,
	}
	if markup != nil {
		body["reply_markup"] = markup
	}
	return c.call(ctx, "sendMessage", body, nil)
}

func (c *Client) EditMessageText(ctx context.Context, chatId int64, messageId int64, text string, markup *InlineKeyboardMarkup) error {
	body := map[string]any{
		"chat_id":    chatId,
		"message_id": messageId,
		"text":       text,
	}
	if markup != nil {
		body["reply_markup"] = markup
	}
	return c.call(ctx, "editMessageText", body, nil)
}

// acknowledges a button press so the client stops showing a spinner
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackId string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackId,
	}, nil)
}
