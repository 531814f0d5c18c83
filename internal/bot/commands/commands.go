package commands

import (
	"context"
	"fmt"
	"html"

	"social-link-bot/internal/models"
	"social-link-bot/internal/result"
	"social-link-bot/internal/telegram"
)

const parseModeHTML = "HTML"

// Linker is the part of the linking service the commands use.
type Linker interface {
	BeginLink(chatID string) string
	Status(ctx context.Context, chatID string) result.Result[*models.LinkedAccount]
	Unlink(ctx context.Context, chatID string) result.Result[bool]
}

type CommandHandler struct {
	Linker Linker
}

func NewCommandHandler(linker Linker) *CommandHandler {
	return &CommandHandler{Linker: linker}
}

// Commands is the bot's command table.
func (h *CommandHandler) Commands() []telegram.Command {
	return []telegram.Command{
		{Prefix: "/start", Description: "Muestra los comandos disponibles", Handler: h.Start},
		{Prefix: "/linkedin", Description: "Vincula tu cuenta de LinkedIn", Handler: h.LinkedIn},
		{Prefix: "/linkedin_status", Description: "Muestra la cuenta de LinkedIn vinculada", Handler: h.LinkedInStatus},
		{Prefix: "/linkedin_logout", Description: "Desvincula tu cuenta de LinkedIn", Handler: h.LinkedInLogout},
	}
}

func (h *CommandHandler) Start(ctx context.Context, s telegram.Sender, chatID string) result.Result[any] {
	msg := `<b>¡Bienvenido!</b> 🤖

Puedo vincular tu cuenta de LinkedIn con este chat.

<b>Comandos:</b>
/linkedin - vincula tu cuenta de LinkedIn
/linkedin_status - muestra la cuenta vinculada
/linkedin_logout - desvincula tu cuenta`
	return reply(ctx, s, chatID, msg, parseModeHTML, "/start")
}

// LinkedIn sends the chat an authorization URL bound to it.
func (h *CommandHandler) LinkedIn(ctx context.Context, s telegram.Sender, chatID string) result.Result[any] {
	url := h.Linker.BeginLink(chatID)
	msg := fmt.Sprintf("Para autenticarte en LinkedIn, visita el siguiente enlace: %s", url)
	return reply(ctx, s, chatID, msg, "", "/linkedin")
}

func (h *CommandHandler) LinkedInStatus(ctx context.Context, s telegram.Sender, chatID string) result.Result[any] {
	status := h.Linker.Status(ctx, chatID)
	if status.IsFailure() {
		return result.Cast[any](status)
	}

	account := status.Data()
	if account == nil {
		return reply(ctx, s, chatID, "No tienes ninguna cuenta de LinkedIn vinculada. Usa /linkedin para vincularla.", "", "/linkedin_status")
	}

	msg := fmt.Sprintf("<b>Cuenta de LinkedIn vinculada</b>\n\n👤 %s", html.EscapeString(account.Name))
	if account.Email != "" {
		msg += fmt.Sprintf("\n✉️ %s", html.EscapeString(account.Email))
	}
	msg += fmt.Sprintf("\n🕒 Vinculada el %s", account.LinkedAt.Format("2006-01-02 15:04 MST"))
	return reply(ctx, s, chatID, msg, parseModeHTML, "/linkedin_status")
}

func (h *CommandHandler) LinkedInLogout(ctx context.Context, s telegram.Sender, chatID string) result.Result[any] {
	removed := h.Linker.Unlink(ctx, chatID)
	if removed.IsFailure() {
		return result.Cast[any](removed)
	}

	msg := "Tu cuenta de LinkedIn ha sido desvinculada."
	if !removed.Data() {
		msg = "No había ninguna cuenta de LinkedIn vinculada."
	}
	return reply(ctx, s, chatID, msg, "", "/linkedin_logout")
}

func reply(ctx context.Context, s telegram.Sender, chatID, text, parseMode, command string) result.Result[any] {
	sent := s.SendMessage(ctx, models.SendMessageConfig{
		ChatID:    chatID,
		Text:      text,
		ParseMode: parseMode,
	})
	if sent.IsFailure() {
		return result.Cast[any](sent)
	}
	return result.Success[any](map[string]any{
		"success": true,
		"message": fmt.Sprintf("Comando %s procesado.", command),
	})
}
