package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"social-link-bot/internal/httpresp"
	"social-link-bot/internal/models"
	"social-link-bot/internal/result"
	"social-link-bot/internal/telegram"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/rs/zerolog"
)

const (
	// SecretTokenHeader carries the secret_token given to setWebhook.
	SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

	defaultDispatchTimeout = 30 * time.Second
	maxUpdateSize          = 1 << 20
)

// TelegramService is what the Telegram controller needs from *telegram.Client.
type TelegramService interface {
	SetWebhook(ctx context.Context, url string, opts *telegram.WebhookOptions) result.Result[bool]
	GetWebhookInfo(ctx context.Context) result.Result[*gotgbot.WebhookInfo]
	DeleteWebhook(ctx context.Context) result.Result[bool]
	GetMe(ctx context.Context) result.Result[*gotgbot.User]
	OnMessage(ctx context.Context, msg models.IncomingMessage) result.Result[any]
}

type TelegramController struct {
	client          TelegramService
	webhookURL      string
	secret          string
	dispatchTimeout time.Duration
	resp            *httpresp.Writer
	log             zerolog.Logger

	inflight sync.WaitGroup
}

type TelegramControllerOpts struct {
	WebhookURL string
	// Secret, when set, is registered with setWebhook and required on inbound updates.
	Secret          string
	DispatchTimeout time.Duration
}

func NewTelegramController(client TelegramService, opts TelegramControllerOpts, resp *httpresp.Writer, log zerolog.Logger) *TelegramController {
	timeout := opts.DispatchTimeout
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &TelegramController{
		client:          client,
		webhookURL:      opts.WebhookURL,
		secret:          opts.Secret,
		dispatchTimeout: timeout,
		resp:            resp,
		log:             log.With().Str("component", "telegram_controller").Logger(),
	}
}

func (c *TelegramController) SetWebhook(w http.ResponseWriter, r *http.Request) {
	var opts *telegram.WebhookOptions
	if c.secret != "" {
		opts = &telegram.WebhookOptions{SecretToken: c.secret}
	}
	res := c.client.SetWebhook(r.Context(), c.webhookURL, opts)
	if res.IsFailure() {
		c.resp.Error(w, r, "Error configurando webhook", res.Err())
		return
	}
	c.resp.OK(w, r, "Webhook configurado exitosamente", res.Data())
}

func (c *TelegramController) GetWebhookInfo(w http.ResponseWriter, r *http.Request) {
	res := c.client.GetWebhookInfo(r.Context())
	if res.IsFailure() {
		c.resp.Error(w, r, "Error obteniendo información del webhook", res.Err())
		return
	}
	c.resp.OK(w, r, "Información del webhook obtenida exitosamente", res.Data())
}

func (c *TelegramController) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	res := c.client.DeleteWebhook(r.Context())
	if res.IsFailure() {
		c.resp.Error(w, r, "Error eliminando webhook", res.Err())
		return
	}
	c.resp.OK(w, r, "Webhook eliminado exitosamente", res.Data())
}

func (c *TelegramController) GetMe(w http.ResponseWriter, r *http.Request) {
	res := c.client.GetMe(r.Context())
	if res.IsFailure() {
		c.resp.Error(w, r, "Error obteniendo información del bot", res.Err())
		return
	}
	c.resp.OK(w, r, "Información del bot obtenida exitosamente", res.Data())
}

// OnMessage accepts an inbound update. Telegram retries anything but a 200, so
// updates without text are acknowledged and dropped, and dispatch runs after
// the response is written.
func (c *TelegramController) OnMessage(w http.ResponseWriter, r *http.Request) {
	if c.secret != "" {
		got := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(c.secret)) != 1 {
			c.resp.Unauthorized(w, r, "Token secreto del webhook inválido")
			return
		}
	}

	var update gotgbot.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateSize)).Decode(&update); err != nil {
		c.resp.BadRequest(w, r, "Update de Telegram inválido", err.Error())
		return
	}

	msg, ok := telegram.IncomingFromUpdate(&update)
	if !ok {
		c.log.Warn().Int64("update_id", update.UpdateId).Msg("update without message text, ignoring")
		w.WriteHeader(http.StatusOK)
		return
	}

	c.log.Info().Int64("update_id", update.UpdateId).Str("chat_id", msg.ChatID).Msg("incoming webhook message")
	c.dispatch(r.Context(), msg)
	w.WriteHeader(http.StatusOK)
}

func (c *TelegramController) dispatch(parent context.Context, msg models.IncomingMessage) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.dispatchTimeout)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer cancel()

		if res := c.client.OnMessage(ctx, msg); res.IsFailure() {
			c.log.Error().Err(res.Err()).Str("chat_id", msg.ChatID).Msg("failed to process message")
		}
	}()
}

// Wait blocks until every dispatched message has been processed.
func (c *TelegramController) Wait() {
	c.inflight.Wait()
}
