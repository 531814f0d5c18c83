package telegram

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"social-link-bot/internal/apperr"
	"social-link-bot/internal/metrics"
	"social-link-bot/internal/models"
	"social-link-bot/internal/result"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/rs/zerolog"
)

const (
	ActionTyping = "typing"

	// NoCommandMessage is the result of a message that matched no command.
	NoCommandMessage = "No se procesó ningún comando específico."

	defaultTypingTimeout = 2 * time.Second
)

// DefaultAllowedUpdates is sent with every setWebhook call unless overridden.
var DefaultAllowedUpdates = []string{"message", "edited_message", "callback_query"}

// API is the subset of *gotgbot.Bot the client uses.
type API interface {
	SendMessageWithContext(ctx context.Context, chatId int64, text string, opts *gotgbot.SendMessageOpts) (*gotgbot.Message, error)
	SetWebhookWithContext(ctx context.Context, url string, opts *gotgbot.SetWebhookOpts) (bool, error)
	GetWebhookInfoWithContext(ctx context.Context, opts *gotgbot.GetWebhookInfoOpts) (*gotgbot.WebhookInfo, error)
	DeleteWebhookWithContext(ctx context.Context, opts *gotgbot.DeleteWebhookOpts) (bool, error)
	GetMeWithContext(ctx context.Context, opts *gotgbot.GetMeOpts) (*gotgbot.User, error)
	SendChatActionWithContext(ctx context.Context, chatId int64, action string, opts *gotgbot.SendChatActionOpts) (bool, error)
	SetMyCommandsWithContext(ctx context.Context, commands []gotgbot.BotCommand, opts *gotgbot.SetMyCommandsOpts) (bool, error)
}

// Sender is what command handlers reply through.
type Sender interface {
	SendMessage(ctx context.Context, cfg models.SendMessageConfig) result.Result[*gotgbot.Message]
}

// WebhookOptions are merged over the defaults on setWebhook. Zero fields keep the default.
type WebhookOptions struct {
	AllowedUpdates     []string
	SecretToken        string
	MaxConnections     int64
	DropPendingUpdates bool
}

type Options struct {
	// DefaultWebhookURL is used when SetWebhook is called with an empty URL.
	DefaultWebhookURL string
	TypingTimeout     time.Duration
	Metrics           *metrics.Metrics
	Logger            zerolog.Logger
}

// Client talks to the Telegram Bot API and dispatches inbound messages.
// Every method returns a result; none panics.
type Client struct {
	api           API
	dispatcher    *Dispatcher
	webhookURL    string
	typingTimeout time.Duration
	metrics       *metrics.Metrics
	log           zerolog.Logger
}

func NewClient(api API, opts Options, commands ...Command) *Client {
	timeout := opts.TypingTimeout
	if timeout <= 0 {
		timeout = defaultTypingTimeout
	}
	return &Client{
		api:           api,
		dispatcher:    NewDispatcher(commands...),
		webhookURL:    opts.DefaultWebhookURL,
		typingTimeout: timeout,
		metrics:       opts.Metrics,
		log:           opts.Logger.With().Str("component", "telegram").Logger(),
	}
}

func (c *Client) SendMessage(ctx context.Context, cfg models.SendMessageConfig) result.Result[*gotgbot.Message] {
	chatID, err := parseChatID("telegram.sendMessage", cfg.ChatID)
	if err != nil {
		return result.Fail[*gotgbot.Message](err)
	}
	if strings.TrimSpace(cfg.Text) == "" {
		return result.Fail[*gotgbot.Message](apperr.InvalidInput("telegram.sendMessage", "message text is empty"))
	}

	var opts *gotgbot.SendMessageOpts
	if cfg.ParseMode != "" {
		opts = &gotgbot.SendMessageOpts{ParseMode: cfg.ParseMode}
	}

	res := call(c, "sendMessage", func() (*gotgbot.Message, error) {
		return c.api.SendMessageWithContext(ctx, chatID, cfg.Text, opts)
	})
	if res.IsSuccess() {
		c.log.Info().Str("chat_id", cfg.ChatID).Int("length", len(cfg.Text)).Msg("message sent")
	}
	return res
}

// SetWebhook registers url (or the configured default when url is empty).
func (c *Client) SetWebhook(ctx context.Context, url string, options *WebhookOptions) result.Result[bool] {
	if url == "" {
		url = c.webhookURL
	}
	if url == "" {
		return result.Fail[bool](apperr.InvalidInput("telegram.setWebhook", "webhook url is required"))
	}

	opts := &gotgbot.SetWebhookOpts{
		AllowedUpdates: append([]string(nil), DefaultAllowedUpdates...),
	}
	if options != nil {
		if len(options.AllowedUpdates) > 0 {
			opts.AllowedUpdates = append([]string(nil), options.AllowedUpdates...)
		}
		opts.SecretToken = options.SecretToken
		opts.MaxConnections = options.MaxConnections
		opts.DropPendingUpdates = options.DropPendingUpdates
	}

	res := call(c, "setWebhook", func() (bool, error) {
		return c.api.SetWebhookWithContext(ctx, url, opts)
	})
	if res.IsSuccess() {
		c.log.Info().Str("url", url).Strs("allowed_updates", opts.AllowedUpdates).Msg("webhook configured")
	}
	return res
}

func (c *Client) GetWebhookInfo(ctx context.Context) result.Result[*gotgbot.WebhookInfo] {
	res := call(c, "getWebhookInfo", func() (*gotgbot.WebhookInfo, error) {
		return c.api.GetWebhookInfoWithContext(ctx, nil)
	})
	if res.IsSuccess() {
		info := res.Data()
		c.log.Info().Str("url", info.Url).Int64("pending", info.PendingUpdateCount).Msg("webhook info fetched")
	}
	return res
}

func (c *Client) DeleteWebhook(ctx context.Context) result.Result[bool] {
	res := call(c, "deleteWebhook", func() (bool, error) {
		return c.api.DeleteWebhookWithContext(ctx, nil)
	})
	if res.IsSuccess() {
		c.log.Info().Msg("webhook deleted")
	}
	return res
}

func (c *Client) GetMe(ctx context.Context) result.Result[*gotgbot.User] {
	res := call(c, "getMe", func() (*gotgbot.User, error) {
		return c.api.GetMeWithContext(ctx, nil)
	})
	if res.IsSuccess() {
		c.log.Info().Str("username", res.Data().Username).Msg("bot info fetched")
	}
	return res
}

func (c *Client) SendChatAction(ctx context.Context, chatID string, action string) result.Result[bool] {
	id, err := parseChatID("telegram.sendChatAction", chatID)
	if err != nil {
		return result.Fail[bool](err)
	}
	return call(c, "sendChatAction", func() (bool, error) {
		return c.api.SendChatActionWithContext(ctx, id, action, nil)
	})
}

// RegisterCommands publishes every described command to the Telegram command menu.
func (c *Client) RegisterCommands(ctx context.Context) result.Result[bool] {
	var cmds []gotgbot.BotCommand
	for _, cmd := range c.dispatcher.Commands() {
		if cmd.Description == "" {
			continue
		}
		cmds = append(cmds, gotgbot.BotCommand{
			Command:     strings.TrimPrefix(cmd.Prefix, "/"),
			Description: cmd.Description,
		})
	}
	if len(cmds) == 0 {
		return result.Success(true)
	}
	return call(c, "setMyCommands", func() (bool, error) {
		return c.api.SetMyCommandsWithContext(ctx, cmds, nil)
	})
}

// OnMessage shows a typing indicator, then runs the command whose prefix
// matches msg.Text. Messages that match nothing are acknowledged without a reply.
func (c *Client) OnMessage(ctx context.Context, msg models.IncomingMessage) (res result.Result[any]) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Interface("panic", r).
				Str("chat_id", msg.ChatID).
				Bytes("stack", debug.Stack()).
				Msg("panic while processing telegram message")
			res = result.Fail[any](fmt.Errorf("telegram.onMessage: %v", r))
		}
	}()

	c.typing(ctx, msg.ChatID)

	cmd, ok := c.dispatcher.Match(msg.Text)
	if !ok {
		c.metrics.RecordUnmatched()
		c.log.Debug().Str("chat_id", msg.ChatID).Msg("no command matched")
		return result.Success[any](NoCommandMessage)
	}

	c.metrics.RecordCommand(cmd.Prefix)
	c.log.Info().Str("chat_id", msg.ChatID).Str("command", cmd.Prefix).Msg("dispatching command")
	return cmd.Handler(ctx, c, msg.ChatID)
}

// typing is best effort: a failure is logged and dispatch carries on.
func (c *Client) typing(ctx context.Context, chatID string) {
	tctx, cancel := context.WithTimeout(ctx, c.typingTimeout)
	defer cancel()

	if r := c.SendChatAction(tctx, chatID, ActionTyping); r.IsFailure() {
		c.log.Warn().Err(r.Err()).Str("chat_id", chatID).Msg("typing indicator failed")
	}
}

func call[T any](c *Client, method string, fn func() (T, error)) result.Result[T] {
	v, err := fn()
	c.metrics.RecordTelegramRequest(method, err)
	if err != nil {
		e := classify("telegram."+method, err)
		c.log.Error().Err(e).Str("method", method).Interface("details", e.Details).Msg("telegram request failed")
		return result.Fail[T](e)
	}
	return result.Success(v)
}

// classify turns a gotgbot error into a provider or network failure.
func classify(op string, err error) *apperr.Error {
	var tgErr *gotgbot.TelegramError
	if errors.As(err, &tgErr) {
		return apperr.Provider(op, tgErr.Code, tgErr.Description, map[string]any{
			"ok":          false,
			"error_code":  tgErr.Code,
			"description": tgErr.Description,
		})
	}
	return apperr.Network(op, err)
}

func parseChatID(op, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.InvalidInput(op, fmt.Sprintf("invalid chat id %q", raw))
	}
	return id, nil
}

// IncomingFromUpdate extracts the chat and text of an update's message.
// It reports false when there is no message or the message has no text.
func IncomingFromUpdate(u *gotgbot.Update) (models.IncomingMessage, bool) {
	if u == nil || u.Message == nil || u.Message.Text == "" {
		return models.IncomingMessage{}, false
	}
	return models.IncomingMessage{
		ChatID: strconv.FormatInt(u.Message.Chat.Id, 10),
		Text:   u.Message.Text,
	}, true
}
