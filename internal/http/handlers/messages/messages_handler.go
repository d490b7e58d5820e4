package messages

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apprelay "busrelay/internal/app/relay"
	"busrelay/internal/http/responses"
	"busrelay/internal/http/validation"
	"busrelay/internal/logging"
)

var (
	publishFailed = responses.Fallback(http.StatusBadGateway, "message could not be published")
	replyFailed   = responses.Fallback(http.StatusInternalServerError, "internal server error")
)

type Handler struct {
	service apprelay.Service
	logger  logging.Logger
}

func NewHandler(service apprelay.Service, logger logging.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With("component", "messages_http_handler"),
	}
}

// Send godoc
// @Summary      Publish a message
// @Description  Wraps the payload in an envelope and publishes it to the recipient's topic.
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        request  body      apidocs.SendMessageRequest  true  "message"
// @Success      202      {object}  apidocs.SendMessageResponse
// @Failure      400      {object}  apidocs.ErrorResponse
// @Failure      422      {object}  apidocs.ErrorResponse
// @Failure      502      {object}  apidocs.ErrorResponse
// @Router       /messages [post]
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !validation.BindAndValidate(w, r, &req) {
		return
	}

	res, err := h.service.Send(r.Context(), apprelay.SendInput{
		Sender:      req.Sender,
		Recipient:   req.Recipient,
		PayloadType: req.PayloadType,
		Payload:     req.Payload,
		Encoding:    req.Encoding,
	})
	if err != nil {
		status := responses.WriteFailure(w, err, publishFailed)
		if status >= http.StatusInternalServerError {
			h.logger.Error("failed to send message", "error", err, "recipient", req.Recipient)
		}
		return
	}

	responses.WriteJSON(w, http.StatusAccepted, SendResponse{
		CorrelationID: res.CorrelationID.String(),
		TimeSent:      res.TimeSent,
	})
}

// Reply godoc
// @Summary      Get the reply for a correlation id
// @Tags         messages
// @Produce      json
// @Param        correlationId  path      string  true  "correlation id"
// @Success      200            {object}  apidocs.ReplyResponse
// @Failure      400            {object}  apidocs.ErrorResponse
// @Failure      404            {object}  apidocs.ErrorResponse
// @Router       /replies/{correlationId} [get]
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "correlationId"))
	if err != nil {
		responses.WriteBadRequest(w, "invalid correlation id")
		return
	}

	dto, err := h.service.Reply(r.Context(), id)
	if err != nil {
		status := responses.WriteFailure(w, err, replyFailed)
		if status >= http.StatusInternalServerError {
			h.logger.Error("failed to get reply", "error", err, "correlation_id", id)
		}
		return
	}

	responses.WriteJSON(w, http.StatusOK, dto)
}
