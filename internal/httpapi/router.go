package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	mw "iconforge/internal/middleware"
)

// NewRouter assembles the control API.
func NewRouter(app *App, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.RequestID,
		mw.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/session", func(r chi.Router) {
		r.Post("/", app.OpenSession)
		r.Get("/", app.GetSession)
		r.Put("/settings", app.UpdateSettings)
		r.Post("/sections", app.AddSection)
		r.Delete("/sections/{name}", app.RemoveSection)
		r.Put("/layers/{name}", app.UpsertLayer)
		r.Delete("/layers/{name}", app.RemoveLayer)
		r.Put("/order", app.SetOrder)
	})

	r.Route("/v1/bulk", func(r chi.Router) {
		r.Post("/start", app.StartRun)
		r.Post("/pause", app.PauseRun)
		r.Post("/resume", app.ResumeRun)
		r.Post("/stop", app.StopRun)
		r.Get("/progress", app.RunProgress)
		r.Post("/regenerate", app.Regenerate)
		r.Get("/events", app.Events)
	})

	r.Route("/v1/icons", func(r chi.Router) {
		r.Post("/svg", app.GenerateSVG)
		r.Post("/render", app.RenderSVG)
		r.Post("/ico", app.BuildICO)
	})

	return r
}
