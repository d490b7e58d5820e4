package health

import (
	"context"
	"net/http"
	"time"

	"busrelay/internal/http/responses"
)

// Pinger is anything the health check can ping, e.g. *cache.RedisClient.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	redis Pinger
}

// NewHandler builds the health handler. redis may be nil when the service
// runs with the in-memory reply cache.
func NewHandler(redis Pinger) *Handler {
	return &Handler{redis: redis}
}

type Response struct {
	Status string `json:"status"`
	Redis  string `json:"redis"`
}

// Check godoc
// @Summary      Service health
// @Tags         health
// @Produce      json
// @Success      200  {object}  apidocs.HealthResponse
// @Failure      503  {object}  apidocs.HealthResponse
// @Router       /health [get]
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	res := Response{Status: "ok", Redis: "disabled"}
	status := http.StatusOK

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.redis.Ping(ctx); err != nil {
			res.Status = "degraded"
			res.Redis = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			res.Redis = "ok"
		}
	}

	responses.WriteJSON(w, status, res)
}
