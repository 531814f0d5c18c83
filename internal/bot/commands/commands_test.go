package commands

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"social-link-bot/internal/apperr"
	"social-link-bot/internal/cache"
	"social-link-bot/internal/db"
	"social-link-bot/internal/linkedin"
	"social-link-bot/internal/linking"
	"social-link-bot/internal/models"
	"social-link-bot/internal/result"
	"social-link-bot/internal/telegram"
	"social-link-bot/internal/utils"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	chatID    int64
	text      string
	parseMode string
}

type fakeBot struct {
	telegram.API
	sent    []sentMessage
	actions []string
	sendErr error
}

func (f *fakeBot) SendMessageWithContext(_ context.Context, chatID int64, text string, opts *gotgbot.SendMessageOpts) (*gotgbot.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	m := sentMessage{chatID: chatID, text: text}
	if opts != nil {
		m.parseMode = opts.ParseMode
	}
	f.sent = append(f.sent, m)
	return &gotgbot.Message{MessageId: int64(len(f.sent)), Text: text}, nil
}

func (f *fakeBot) SendChatActionWithContext(_ context.Context, _ int64, action string, _ *gotgbot.SendChatActionOpts) (bool, error) {
	f.actions = append(f.actions, action)
	return true, nil
}

type memStore struct {
	accounts map[int64]*models.LinkedAccount
}

func (m *memStore) SaveLinkedAccount(_ context.Context, a *models.LinkedAccount) error {
	m.accounts[a.ChatID] = a
	return nil
}

func (m *memStore) GetLinkedAccount(_ context.Context, chatID int64, _ string) (*models.LinkedAccount, error) {
	if a, ok := m.accounts[chatID]; ok {
		return a, nil
	}
	return nil, db.ErrNotFound
}

func (m *memStore) DeleteLinkedAccount(_ context.Context, chatID int64, _ string) error {
	if _, ok := m.accounts[chatID]; !ok {
		return db.ErrNotFound
	}
	delete(m.accounts, chatID)
	return nil
}

func setup(t *testing.T) (*telegram.Client, *fakeBot, *memStore) {
	t.Helper()
	sealer, err := utils.NewSealer("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	store := &memStore{accounts: map[int64]*models.LinkedAccount{}}
	svc := linking.NewService(linking.Deps{
		Auth: linkedin.NewOAuth(linkedin.Config{
			ClientID:    "77gb0ro5raeet3",
			RedirectURL: "https://bot.example.com/api/linkedin/auth",
			Logger:      zerolog.Nop(),
		}),
		States:    cache.New[string, models.PendingLink](),
		Store:     store,
		Sealer:    sealer,
		BaseState: "xyz",
		Logger:    zerolog.Nop(),
	})

	bot := &fakeBot{}
	client := telegram.NewClient(bot, telegram.Options{Logger: zerolog.Nop()}, NewCommandHandler(svc).Commands()...)
	return client, bot, store
}

var urlPattern = regexp.MustCompile(`https://\S+`)

func TestLinkedInSendsAuthorizationURL(t *testing.T) {
	client, bot, _ := setup(t)

	res := client.OnMessage(t.Context(), models.IncomingMessage{ChatID: "123", Text: "/linkedin"})

	require.True(t, res.IsSuccess(), "%v", res.Err())
	assert.Equal(t, map[string]any{"success": true, "message": "Comando /linkedin procesado."}, res.Data())
	assert.Equal(t, []string{telegram.ActionTyping}, bot.actions)
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(123), bot.sent[0].chatID)
	assert.True(t, strings.HasPrefix(bot.sent[0].text, "Para autenticarte en LinkedIn, visita el siguiente enlace: "))

	raw := urlPattern.FindString(bot.sent[0].text)
	assert.True(t, strings.HasPrefix(raw, "https://www.linkedin.com/oauth/v2/authorization"))
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "77gb0ro5raeet3", u.Query().Get("client_id"))
	assert.True(t, strings.HasPrefix(u.Query().Get("state"), "xyz."))
	assert.Equal(t, "openid profile email", u.Query().Get("scope"))
}

func TestLinkedInSendFailure(t *testing.T) {
	client, bot, _ := setup(t)
	bot.sendErr = &gotgbot.TelegramError{Method: "sendMessage", Code: 400, Description: "Bad Request: chat not found"}

	res := client.OnMessage(t.Context(), models.IncomingMessage{ChatID: "123", Text: "/linkedin"})

	require.True(t, res.IsFailure())
	assert.Equal(t, apperr.KindProvider, apperr.KindOf(res.Err()))
}

func TestLinkedInStatus(t *testing.T) {
	client, bot, store := setup(t)

	res := client.OnMessage(t.Context(), models.IncomingMessage{ChatID: "123", Text: "/linkedin_status"})
	require.True(t, res.IsSuccess())
	require.Len(t, bot.sent, 1)
	assert.Contains(t, bot.sent[0].text, "No tienes ninguna cuenta")

	store.accounts[123] = &models.LinkedAccount{
		ChatID:   123,
		Provider: models.ProviderLinkedIn,
		Name:     "Ada <Lovelace>",
		Email:    "ada@example.com",
		LinkedAt: time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC),
	}

	res = client.OnMessage(t.Context(), models.IncomingMessage{ChatID: "123", Text: "/linkedin_status"})
	require.True(t, res.IsSuccess())
	require.Len(t, bot.sent, 2)
	assert.Equal(t, parseModeHTML, bot.sent[1].parseMode)
	assert.Contains(t, bot.sent[1].text, "Ada &lt;Lovelace&gt;")
	assert.Contains(t, bot.sent[1].text, "ada@example.com")
	assert.Contains(t, bot.sent[1].text, "2026-10-01 09:30 UTC")
}

func TestLinkedInLogoutWinsOverLinkedIn(t *testing.T) {
	client, bot, store := setup(t)
	store.accounts[123] = &models.LinkedAccount{ChatID: 123, Provider: models.ProviderLinkedIn}

	res := client.OnMessage(t.Context(), models.IncomingMessage{ChatID: "123", Text: "/linkedin_logout"})

	require.True(t, res.IsSuccess())
	assert.Equal(t, "Comando /linkedin_logout procesado.", res.Data().(map[string]any)["message"])
	require.Len(t, bot.sent, 1)
	assert.Equal(t, "Tu cuenta de LinkedIn ha sido desvinculada.", bot.sent[0].text)
	assert.Empty(t, store.accounts)

	res = client.OnMessage(t.Context(), models.IncomingMessage{ChatID: "123", Text: "/linkedin_logout"})
	require.True(t, res.IsSuccess())
	assert.Equal(t, "No había ninguna cuenta de LinkedIn vinculada.", bot.sent[1].text)
}

func TestStart(t *testing.T) {
	client, bot, _ := setup(t)

	res := client.OnMessage(t.Context(), models.IncomingMessage{ChatID: "-100200", Text: "/start"})

	require.True(t, res.IsSuccess())
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(-100200), bot.sent[0].chatID)
	assert.Equal(t, parseModeHTML, bot.sent[0].parseMode)
	for _, cmd := range []string{"/linkedin", "/linkedin_status", "/linkedin_logout"} {
		assert.Contains(t, bot.sent[0].text, cmd)
	}
}

type failingLinker struct{}

func (failingLinker) BeginLink(string) string { return "" }

func (failingLinker) Status(context.Context, string) result.Result[*models.LinkedAccount] {
	return result.Fail[*models.LinkedAccount](apperr.Network("linking.status", errors.New("server selection timeout")))
}

func (failingLinker) Unlink(context.Context, string) result.Result[bool] {
	return result.Fail[bool](apperr.Network("linking.unlink", errors.New("server selection timeout")))
}

func TestStoreFailuresSendNothing(t *testing.T) {
	bot := &fakeBot{}
	h := NewCommandHandler(failingLinker{})
	client := telegram.NewClient(bot, telegram.Options{Logger: zerolog.Nop()}, h.Commands()...)

	for _, text := range []string{"/linkedin_status", "/linkedin_logout"} {
		res := client.OnMessage(t.Context(), models.IncomingMessage{ChatID: "1", Text: text})
		require.True(t, res.IsFailure(), text)
		assert.Equal(t, apperr.KindNetwork, apperr.KindOf(res.Err()))
	}
	assert.Empty(t, bot.sent)
}

func TestCommandsHaveDescriptions(t *testing.T) {
	for _, cmd := range NewCommandHandler(failingLinker{}).Commands() {
		assert.NotEmpty(t, cmd.Description, cmd.Prefix)
		assert.NotNil(t, cmd.Handler, cmd.Prefix)
	}
}
