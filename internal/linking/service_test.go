package linking

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"social-link-bot/internal/apperr"
	"social-link-bot/internal/cache"
	"social-link-bot/internal/db"
	"social-link-bot/internal/events"
	"social-link-bot/internal/linkedin"
	"social-link-bot/internal/metrics"
	"social-link-bot/internal/models"
	"social-link-bot/internal/result"
	"social-link-bot/internal/utils"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu       sync.Mutex
	accounts map[int64]*models.LinkedAccount
	err      error
}

func newMemStore() *memStore {
	return &memStore{accounts: map[int64]*models.LinkedAccount{}}
}

func (m *memStore) SaveLinkedAccount(_ context.Context, a *models.LinkedAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.accounts[a.ChatID] = a
	return nil
}

func (m *memStore) GetLinkedAccount(_ context.Context, chatID int64, _ string) (*models.LinkedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.accounts[chatID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return a, nil
}

func (m *memStore) DeleteLinkedAccount(_ context.Context, chatID int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.accounts[chatID]; !ok {
		return db.ErrNotFound
	}
	delete(m.accounts, chatID)
	return nil
}

type fakeAuth struct {
	calls int
	res   result.Result[*models.OAuthProfile[models.LinkedInProfile]]
}

func (f *fakeAuth) AuthURL(state string) string {
	return "https://www.linkedin.com/oauth/v2/authorization?state=" + url.QueryEscape(state)
}

func (f *fakeAuth) Authenticate(context.Context, linkedin.AuthRequest) result.Result[*models.OAuthProfile[models.LinkedInProfile]] {
	f.calls++
	return f.res
}

type recordingPublisher struct {
	events []events.AccountEvent
	err    error
}

func (p *recordingPublisher) PublishAccountEvent(_ context.Context, ev events.AccountEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	svc       *Service
	auth      *fakeAuth
	store     *memStore
	publisher *recordingPublisher
	sealer    *utils.Sealer
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sealer, err := utils.NewSealer("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	f := &fixture{
		auth: &fakeAuth{res: result.Success(&models.OAuthProfile[models.LinkedInProfile]{
			Provider:    models.ProviderLinkedIn,
			Profile:     models.LinkedInProfile{Sub: "782bbtaQ", Name: "Ada Lovelace", Email: "ada@example.com"},
			AccessToken: "AQX-token",
			ExpiresAt:   time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		})},
		store:     newMemStore(),
		publisher: &recordingPublisher{},
		sealer:    sealer,
		metrics:   metrics.New(),
	}
	f.svc = NewService(Deps{
		Auth:      f.auth,
		States:    cache.New[string, models.PendingLink](),
		Store:     f.store,
		Sealer:    sealer,
		Publisher: f.publisher,
		BaseState: "xyz",
		Metrics:   f.metrics,
		Logger:    zerolog.Nop(),
	})
	return f
}

func stateOf(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestBeginLinkEmbedsBaseState(t *testing.T) {
	f := newFixture(t)

	s1 := stateOf(t, f.svc.BeginLink("12345"))
	s2 := stateOf(t, f.svc.BeginLink("12345"))

	assert.True(t, strings.HasPrefix(s1, "xyz."))
	assert.NotEqual(t, s1, s2)
}

func TestCompleteLinkStoresAccount(t *testing.T) {
	f := newFixture(t)
	state := stateOf(t, f.svc.BeginLink("12345"))

	res := f.svc.CompleteLink(t.Context(), "code", state)

	require.True(t, res.IsSuccess(), "%v", res.Err())
	link := res.Data()
	assert.True(t, link.Linked())
	assert.Equal(t, "12345", link.ChatID)
	assert.Equal(t, "782bbtaQ", link.Profile.Profile.Sub)

	stored := f.store.accounts[12345]
	require.NotNil(t, stored)
	assert.Equal(t, models.ProviderLinkedIn, stored.Provider)
	assert.Equal(t, "782bbtaQ", stored.ProviderUserID)
	assert.Equal(t, "Ada Lovelace", stored.Name)
	assert.NotEqual(t, "AQX-token", stored.EncryptedAccessToken)
	plain, err := f.sealer.Open(stored.EncryptedAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "AQX-token", plain)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.TypeAccountLinked, f.publisher.events[0].Type)
	assert.Equal(t, int64(12345), f.publisher.events[0].ChatID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LinkedAccounts.WithLabelValues(events.TypeAccountLinked)))
}

func TestCompleteLinkStateIsSingleUse(t *testing.T) {
	f := newFixture(t)
	state := stateOf(t, f.svc.BeginLink("12345"))

	first := f.svc.CompleteLink(t.Context(), "code", state)
	second := f.svc.CompleteLink(t.Context(), "code", state)

	require.True(t, first.IsSuccess())
	require.True(t, second.IsSuccess())
	assert.True(t, first.Data().Linked())
	assert.False(t, second.Data().Linked())
	assert.Len(t, f.publisher.events, 1)
}

func TestCompleteLinkRejectsForeignState(t *testing.T) {
	tests := []string{"", "xyz", "xyz.", "other.abc", "abc"}

	for _, state := range tests {
		t.Run(state, func(t *testing.T) {
			f := newFixture(t)

			res := f.svc.CompleteLink(t.Context(), "code", state)

			require.True(t, res.IsFailure())
			assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(res.Err()))
			assert.Contains(t, res.Err().Error(), "state is missing or was not issued by this bot")
			assert.Zero(t, f.auth.calls)
		})
	}
}

func TestCompleteLinkUnknownNonceReturnsProfileOnly(t *testing.T) {
	f := newFixture(t)

	res := f.svc.CompleteLink(t.Context(), "code", "xyz.unknown")

	require.True(t, res.IsSuccess())
	assert.False(t, res.Data().Linked())
	assert.Equal(t, "782bbtaQ", res.Data().Profile.Profile.Sub)
	assert.Empty(t, f.store.accounts)
	assert.Empty(t, f.publisher.events)
}

func TestCompleteLinkPropagatesAuthFailure(t *testing.T) {
	f := newFixture(t)
	f.auth.res = result.Fail[*models.OAuthProfile[models.LinkedInProfile]](
		apperr.InvalidCode("linkedin.accessToken", "authorization code expired", map[string]any{"error": "invalid_grant"}))
	state := stateOf(t, f.svc.BeginLink("12345"))

	res := f.svc.CompleteLink(t.Context(), "code", state)

	require.True(t, res.IsFailure())
	assert.Equal(t, apperr.KindInvalidCode, apperr.KindOf(res.Err()))
	assert.Empty(t, f.store.accounts)
}

func TestCompleteLinkStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("connection reset")
	state := stateOf(t, f.svc.BeginLink("12345"))

	res := f.svc.CompleteLink(t.Context(), "code", state)

	require.True(t, res.IsFailure())
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(res.Err()))
	assert.Empty(t, f.publisher.events)
}

func TestCompleteLinkSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("kafka: client has run out of available brokers")
	state := stateOf(t, f.svc.BeginLink("12345"))

	res := f.svc.CompleteLink(t.Context(), "code", state)

	require.True(t, res.IsSuccess())
	assert.Contains(t, f.store.accounts, int64(12345))
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	none := f.svc.Status(t.Context(), "12345")
	require.True(t, none.IsSuccess())
	assert.Nil(t, none.Data())

	state := stateOf(t, f.svc.BeginLink("12345"))
	require.True(t, f.svc.CompleteLink(t.Context(), "code", state).IsSuccess())

	linked := f.svc.Status(t.Context(), "12345")
	require.True(t, linked.IsSuccess())
	require.NotNil(t, linked.Data())
	assert.Equal(t, "ada@example.com", linked.Data().Email)

	bad := f.svc.Status(t.Context(), "abc")
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(bad.Err()))
}

func TestUnlink(t *testing.T) {
	f := newFixture(t)
	state := stateOf(t, f.svc.BeginLink("12345"))
	require.True(t, f.svc.CompleteLink(t.Context(), "code", state).IsSuccess())

	removed := f.svc.Unlink(t.Context(), "12345")
	require.True(t, removed.IsSuccess())
	assert.True(t, removed.Data())
	assert.Empty(t, f.store.accounts)

	again := f.svc.Unlink(t.Context(), "12345")
	require.True(t, again.IsSuccess())
	assert.False(t, again.Data())

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, events.TypeAccountUnlinked, f.publisher.events[1].Type)
}

func TestUnlinkStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("server selection timeout")

	res := f.svc.Unlink(t.Context(), "12345")

	require.True(t, res.IsFailure())
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(res.Err()))
}
