package wire

import (
	"time"

	"qwiken-auth/internal/adaptor"
	"qwiken-auth/pkg/middleware"
	"qwiken-auth/pkg/utils"

	"github.com/go-chi/chi/v5"
)

func wireReset(r chi.Router, resetHandler *adaptor.ResetHandler, config *utils.Config) {
	rateLimit := middleware.RateLimit(
		config.RateLimit.Requests,
		time.Duration(config.RateLimit.PeriodS)*time.Second,
	)

	r.With(rateLimit).Post("/api/password-reset", resetHandler.Handle)
	// Preflight is answered by the CORS middleware before routing matters,
	// but chi still needs a route for OPTIONS to avoid 405.
	r.Options("/api/password-reset", resetHandler.Handle)
}
