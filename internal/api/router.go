// Package api exposes the HTTP surface: Telegram admin and webhook endpoints,
// the LinkedIn OAuth callback, health and metrics.
package api

import (
	"net/http"

	"social-link-bot/internal/httpresp"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Telegram *TelegramController
	LinkedIn *LinkedInController
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Resp    *httpresp.Writer
	Logger  zerolog.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Logger))
	r.Use(Recoverer(d.Resp))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpresp.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/telegram", func(r chi.Router) {
			r.Post("/setup-webhook", d.Telegram.SetWebhook)
			r.Get("/webhook-info", d.Telegram.GetWebhookInfo)
			r.Delete("/webhook", d.Telegram.DeleteWebhook)
			r.Get("/bot-info", d.Telegram.GetMe)
			r.Post("/webhook", d.Telegram.OnMessage)
		})
		r.Route("/linkedin", func(r chi.Router) {
			r.Get("/auth", d.LinkedIn.Authenticate)
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		d.Resp.NotFound(w, req)
	})
	return r
}
