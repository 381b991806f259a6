package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/infra"
	"server/internal/jobstore"
	"server/internal/middleware"
	"server/internal/process"

	"github.com/rs/zerolog"
)

// App bundles the handlers' collaborators.
type App struct {
	Cfg   *infra.Config
	Log   zerolog.Logger
	Store *jobstore.Store
	Proc  *process.Processor
}

func NewApp(cfg *infra.Config, log zerolog.Logger, store *jobstore.Store, proc *process.Processor) *App {
	return &App{Cfg: cfg, Log: log, Store: store, Proc: proc}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, detail string) {
	a.json(w, code, map[string]string{"error": kind, "detail": detail})
}

// localize picks the message for the request's locale.
func localize(r *http.Request, zh, en string) string {
	if middleware.LocaleFromContext(r.Context()) == "zh" {
		return zh
	}
	return en
}
