package api

import (
	"context"
	"fmt"
	"html"
	"net/http"

	"social-link-bot/internal/httpresp"
	"social-link-bot/internal/linking"
	"social-link-bot/internal/models"
	"social-link-bot/internal/result"
	"social-link-bot/internal/telegram"

	"github.com/rs/zerolog"
)

// Linker completes the authorization started by /linkedin.
type Linker interface {
	CompleteLink(ctx context.Context, code, state string) result.Result[*linking.Link]
}

type LinkedInController struct {
	linker Linker
	sender telegram.Sender
	resp   *httpresp.Writer
	log    zerolog.Logger
}

func NewLinkedInController(linker Linker, sender telegram.Sender, resp *httpresp.Writer, log zerolog.Logger) *LinkedInController {
	return &LinkedInController{
		linker: linker,
		sender: sender,
		resp:   resp,
		log:    log.With().Str("component", "linkedin_controller").Logger(),
	}
}

// Authenticate handles the OAuth redirect: GET /api/linkedin/auth?code=&state=
func (c *LinkedInController) Authenticate(w http.ResponseWriter, r *http.Request) {
	c.log.Info().Msg("starting LinkedIn authentication")
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		c.resp.BadRequest(w, r, "Autenticación de LinkedIn cancelada", map[string]string{
			"error":             providerErr,
			"error_description": q.Get("error_description"),
		})
		return
	}

	code := q.Get("code")
	if code == "" {
		c.resp.BadRequest(w, r, "Código de autenticación no proporcionado", nil)
		return
	}

	res := c.linker.CompleteLink(r.Context(), code, q.Get("state"))
	if res.IsFailure() {
		c.resp.Error(w, r, "Error durante la autenticación de LinkedIn", res.Err())
		return
	}

	link := res.Data()
	if link.Linked() {
		c.notify(r.Context(), link)
	}
	c.resp.OK(w, r, "Autenticación exitosa", link.Profile)
}

// notify tells the chat the account is linked. A failed message does not fail the callback.
func (c *LinkedInController) notify(ctx context.Context, link *linking.Link) {
	text := fmt.Sprintf("✅ Cuenta de LinkedIn <b>%s</b> vinculada correctamente.",
		html.EscapeString(link.Profile.Profile.DisplayName()))
	sent := c.sender.SendMessage(ctx, models.SendMessageConfig{
		ChatID:    link.ChatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if sent.IsFailure() {
		c.log.Warn().Err(sent.Err()).Str("chat_id", link.ChatID).Msg("failed to notify chat of linked account")
	}
}
