// Package linking binds LinkedIn identities to Telegram chats.
package linking

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"social-link-bot/internal/apperr"
	"social-link-bot/internal/cache"
	"social-link-bot/internal/db"
	"social-link-bot/internal/events"
	"social-link-bot/internal/linkedin"
	"social-link-bot/internal/metrics"
	"social-link-bot/internal/models"
	"social-link-bot/internal/result"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// StateTTL bounds how long an authorization URL stays usable.
	StateTTL = 10 * time.Minute

	stateSeparator = "."
)

// AccountStore persists linked accounts. *db.DB implements it.
type AccountStore interface {
	SaveLinkedAccount(ctx context.Context, account *models.LinkedAccount) error
	GetLinkedAccount(ctx context.Context, chatID int64, provider string) (*models.LinkedAccount, error)
	DeleteLinkedAccount(ctx context.Context, chatID int64, provider string) error
}

// Authenticator completes the OAuth grant. *linkedin.OAuth implements it.
type Authenticator interface {
	AuthURL(state string) string
	Authenticate(ctx context.Context, req linkedin.AuthRequest) result.Result[*models.OAuthProfile[models.LinkedInProfile]]
}

// TokenSealer encrypts access tokens before they are stored.
type TokenSealer interface {
	Seal(plainText string) (string, error)
}

// Link is the outcome of a completed authorization.
type Link struct {
	Profile *models.OAuthProfile[models.LinkedInProfile] `json:"profile"`
	// ChatID is set when the state was bound to a chat and the account was saved.
	ChatID string `json:"chat_id,omitempty"`
}

func (l *Link) Linked() bool { return l.ChatID != "" }

type Service struct {
	auth      Authenticator
	states    *cache.Cache[string, models.PendingLink]
	store     AccountStore
	sealer    TokenSealer
	publisher events.Publisher
	baseState string
	metrics   *metrics.Metrics
	log       zerolog.Logger
	now       func() time.Time
}

type Deps struct {
	Auth      Authenticator
	States    *cache.Cache[string, models.PendingLink]
	Store     AccountStore
	Sealer    TokenSealer
	Publisher events.Publisher
	// BaseState is the configured state prefix every authorization URL carries.
	BaseState string
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

func NewService(d Deps) *Service {
	publisher := d.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		auth:      d.Auth,
		states:    d.States,
		store:     d.Store,
		sealer:    d.Sealer,
		publisher: publisher,
		baseState: d.BaseState,
		metrics:   d.Metrics,
		log:       d.Logger.With().Str("component", "linking").Logger(),
		now:       time.Now,
	}
}

// BeginLink returns an authorization URL whose state resolves back to chatID.
func (s *Service) BeginLink(chatID string) string {
	nonce := uuid.NewString()
	s.states.Set(nonce, models.PendingLink{ChatID: chatID}, StateTTL)
	return s.auth.AuthURL(s.baseState + stateSeparator + nonce)
}

// CompleteLink finishes the grant started by BeginLink. The profile is returned even when the
// state no longer maps to a chat; in that case nothing is stored.
func (s *Service) CompleteLink(ctx context.Context, code, state string) result.Result[*Link] {
	nonce, err := s.parseState(state)
	if err != nil {
		return result.Fail[*Link](err)
	}

	profile := s.auth.Authenticate(ctx, linkedin.AuthRequest{Code: code})
	if profile.IsFailure() {
		return result.Cast[*Link](profile)
	}
	link := &Link{Profile: profile.Data()}

	pending, ok := s.states.Pop(nonce)
	if !ok {
		s.log.Warn().Str("sub", link.Profile.Profile.Sub).Msg("authorization state not bound to a chat, profile not stored")
		return result.Success(link)
	}

	if saved := s.save(ctx, pending.ChatID, link.Profile); saved.IsFailure() {
		return result.Cast[*Link](saved)
	}
	link.ChatID = pending.ChatID
	return result.Success(link)
}

// Status returns the chat's stored LinkedIn account, or nil when there is none.
func (s *Service) Status(ctx context.Context, chatID string) result.Result[*models.LinkedAccount] {
	id, err := parseChatID("linking.status", chatID)
	if err != nil {
		return result.Fail[*models.LinkedAccount](err)
	}

	account, err := s.store.GetLinkedAccount(ctx, id, models.ProviderLinkedIn)
	if errors.Is(err, db.ErrNotFound) {
		return result.Success[*models.LinkedAccount](nil)
	}
	if err != nil {
		return result.Fail[*models.LinkedAccount](apperr.Network("linking.status", err))
	}
	return result.Success(account)
}

// Unlink removes the chat's LinkedIn account. It reports false when nothing was linked.
func (s *Service) Unlink(ctx context.Context, chatID string) result.Result[bool] {
	id, err := parseChatID("linking.unlink", chatID)
	if err != nil {
		return result.Fail[bool](err)
	}

	err = s.store.DeleteLinkedAccount(ctx, id, models.ProviderLinkedIn)
	if errors.Is(err, db.ErrNotFound) {
		return result.Success(false)
	}
	if err != nil {
		return result.Fail[bool](apperr.Network("linking.unlink", err))
	}

	s.metrics.RecordAccountEvent(events.TypeAccountUnlinked)
	s.publish(ctx, events.AccountEvent{
		Type:     events.TypeAccountUnlinked,
		ChatID:   id,
		Provider: models.ProviderLinkedIn,
	})
	s.log.Info().Int64("chat_id", id).Msg("LinkedIn account unlinked")
	return result.Success(true)
}

// save seals the token, upserts the account and announces the link.
func (s *Service) save(ctx context.Context, chatID string, p *models.OAuthProfile[models.LinkedInProfile]) result.Result[struct{}] {
	const op = "linking.saveLinkedAccount"
	id, err := parseChatID(op, chatID)
	if err != nil {
		return result.Fail[struct{}](err)
	}

	sealed, err := s.sealer.Seal(p.AccessToken)
	if err != nil {
		return result.Fail[struct{}](&apperr.Error{Kind: apperr.KindUnknown, Op: op, Msg: "failed to seal access token", Err: err})
	}

	account := &models.LinkedAccount{
		ChatID:               id,
		Provider:             models.ProviderLinkedIn,
		ProviderUserID:       p.Profile.Sub,
		Name:                 p.Profile.DisplayName(),
		Email:                p.Profile.Email,
		EncryptedAccessToken: sealed,
		ExpiresAt:            p.ExpiresAt,
		LinkedAt:             s.now().UTC(),
	}
	if err := s.store.SaveLinkedAccount(ctx, account); err != nil {
		s.log.Error().Err(err).Int64("chat_id", id).Msg("failed to save linked account")
		return result.Fail[struct{}](apperr.Network(op, err))
	}

	s.metrics.RecordAccountEvent(events.TypeAccountLinked)
	s.publish(ctx, events.AccountEvent{
		Type:           events.TypeAccountLinked,
		ChatID:         id,
		Provider:       models.ProviderLinkedIn,
		ProviderUserID: p.Profile.Sub,
	})
	s.log.Info().Int64("chat_id", id).Str("sub", p.Profile.Sub).Msg("LinkedIn account linked")
	return result.Success(struct{}{})
}

// publish never fails the caller; the link is already stored.
func (s *Service) publish(ctx context.Context, ev events.AccountEvent) {
	ev.OccurredAt = s.now().UTC()
	if err := s.publisher.PublishAccountEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("type", ev.Type).Int64("chat_id", ev.ChatID).Msg("failed to publish account event")
	}
}

func (s *Service) parseState(state string) (string, error) {
	base, nonce, found := strings.Cut(state, stateSeparator)
	if !found || base != s.baseState || nonce == "" {
		return "", apperr.InvalidInput("linking.completeLink", "state is missing or was not issued by this bot")
	}
	return nonce, nil
}

func parseChatID(op, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.InvalidInput(op, "invalid chat id "+strconv.Quote(raw))
	}
	return id, nil
}
