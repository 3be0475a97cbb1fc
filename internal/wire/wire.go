package wire

import (
	"net/http"

	"qwiken-auth/internal/adaptor"
	"qwiken-auth/internal/data/repository"
	"qwiken-auth/internal/email"
	"qwiken-auth/internal/usecase"
	"qwiken-auth/pkg/middleware"
	"qwiken-auth/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// App holds the wired dependency graph
type App struct {
	Router *chi.Mux
}

// Wiring initializes all dependencies. Everything is injected here at
// startup; no package keeps ambient global state.
func Wiring(repo *repository.Repository, config *utils.Config, logger *zap.Logger) *App {
	// SMTP connection details are only resolved when the first email
	// actually goes out.
	dispatcher := email.NewLazy(func() (email.Dispatcher, error) {
		return email.NewSMTPDispatcher(config.Email, logger), nil
	})

	service := usecase.NewService(repo, dispatcher, config, logger)
	handler := adaptor.NewHandler(service, logger)

	router := setupRouter(handler, config, logger)

	return &App{
		Router: router,
	}
}

func setupRouter(
	handler *adaptor.Handler,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS())

	wireReset(r, handler.Reset, config)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
