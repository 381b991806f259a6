package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	mw "server/internal/middleware"
)

// NewRouter wires the document API. Conversion itself never runs on this
// path; upload dispatches a background unit and everything else reads the
// filesystem state.
func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(mw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(mw.Logger(app.Log))
	r.Use(mw.CORS(app.Cfg.CORSOrigins))
	r.Use(mw.I18N("zh"))

	r.Get("/v1/healthz", app.Health)

	r.Route(app.Cfg.APIPrefix+"/documents", func(r chi.Router) {
		r.With(mw.RateLimit(app.Cfg.RateLimitPerMin, time.Minute)).Post("/upload", app.UploadDocument)
		r.Get("/list", app.ListDocuments)
		r.Get("/{docID}", app.GetDocument)
		r.Get("/{docID}/html", app.GetDocumentHTML)
		r.Get("/{docID}/images/{imageName}", app.GetDocumentImage)
		r.Get("/{docID}/download", app.DownloadDocument)
		r.Delete("/{docID}", app.DeleteDocument)
	})

	return r
}
