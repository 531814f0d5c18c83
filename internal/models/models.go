package models

import (
	"time"
)

const ProviderLinkedIn = "linkedin"

// LinkedAccount is a Telegram chat linked to a third-party identity
type LinkedAccount struct {
	ChatID               int64     `bson:"chat_id" json:"chat_id"`
	Provider             string    `bson:"provider" json:"provider"`
	ProviderUserID       string    `bson:"provider_user_id" json:"provider_user_id"`
	Name                 string    `bson:"name" json:"name"`
	Email                string    `bson:"email,omitempty" json:"email,omitempty"`
	EncryptedAccessToken string    `bson:"encrypted_access_token" json:"-"`
	ExpiresAt            time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	LinkedAt             time.Time `bson:"linked_at" json:"linked_at"`
}

// OAuthProfile wraps the identity returned by a provider after a successful code exchange
type OAuthProfile[T any] struct {
	Provider    string    `json:"provider"`
	Profile     T         `json:"profile"`
	AccessToken string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

type LinkedInLocale struct {
	Country  string `json:"country"`
	Language string `json:"language"`
}

// LinkedInProfile is the OpenID Connect userinfo document
type LinkedInProfile struct {
	Sub           string         `json:"sub"`
	EmailVerified bool           `json:"email_verified"`
	Name          string         `json:"name"`
	Locale        LinkedInLocale `json:"locale"`
	GivenName     string         `json:"given_name"`
	FamilyName    string         `json:"family_name"`
	Email         string         `json:"email"`
	Picture       string         `json:"picture"`
}

// DisplayName falls back to given/family names when "name" is absent.
func (p LinkedInProfile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	switch {
	case p.GivenName != "" && p.FamilyName != "":
		return p.GivenName + " " + p.FamilyName
	case p.GivenName != "":
		return p.GivenName
	case p.FamilyName != "":
		return p.FamilyName
	}
	return "N/A"
}
