package telegram

import (
	"context"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"
	"github.com/rs/zerolog"
)

// Poller feeds long-polled updates into Client.OnMessage. It is the local
// development alternative to the webhook endpoint.
type Poller struct {
	bot     *gotgbot.Bot
	client  *Client
	updater *ext.Updater
	timeout time.Duration
	log     zerolog.Logger
}

func NewPoller(bot *gotgbot.Bot, client *Client, dispatchTimeout time.Duration, log zerolog.Logger) *Poller {
	p := &Poller{
		bot:     bot,
		client:  client,
		timeout: dispatchTimeout,
		log:     log.With().Str("component", "poller").Logger(),
	}

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *gotgbot.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			p.log.Error().Err(err).Msg("error processing update")
			return ext.DispatcherActionNoop
		},
	})
	dispatcher.AddHandler(handlers.NewMessage(message.Text, p.handle))

	p.updater = ext.NewUpdater(dispatcher, nil)
	return p
}

func (p *Poller) handle(b *gotgbot.Bot, ctx *ext.Context) error {
	msg, ok := IncomingFromUpdate(ctx.Update)
	if !ok {
		return nil
	}

	dctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if res := p.client.OnMessage(dctx, msg); res.IsFailure() {
		return res.Err()
	}
	return nil
}

// Start removes any registered webhook, since Telegram refuses getUpdates
// while one is set, then begins polling in the background.
func (p *Poller) Start(ctx context.Context) error {
	if res := p.client.DeleteWebhook(ctx); res.IsFailure() {
		return res.Err()
	}

	err := p.updater.StartPolling(p.bot, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &gotgbot.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &gotgbot.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return err
	}

	p.log.Info().Str("username", p.bot.User.Username).Msg("polling started")
	return nil
}

func (p *Poller) Stop() error {
	return p.updater.Stop()
}
