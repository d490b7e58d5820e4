package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "busrelay/docs"
	"busrelay/internal/http/handlers/health"
	"busrelay/internal/http/handlers/messages"
	"busrelay/internal/http/responses"
	"busrelay/internal/logging"
)

const requestTimeout = 30 * time.Second

func NewRouter(
	logger logging.Logger,
	healthHandler *health.Handler,
	messagesHandler *messages.Handler,
) chi.Router {
	r := chi.NewRouter()

	useBaseMiddlewares(r, logger, requestTimeout)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Check)

		r.Post("/messages", messagesHandler.Send)
		r.Get("/replies/{correlationId}", messagesHandler.Reply)
	})

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteNotFound(w, r)
	})

	return r
}
