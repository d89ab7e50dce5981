package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch-console/internal/apiclient"
	"dispatch-console/internal/kanban"
	"dispatch-console/internal/query"
	"dispatch-console/internal/store"
	"dispatch-console/pkg/logger"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError maps engine and upstream errors to a status and a body whose
// message is the most specific one available.
func writeError(c *gin.Context, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Warn("request failed", "err", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorBody{Error: kind, Message: apiclient.Message(err)})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, kanban.ErrConfirmationRequired):
		return http.StatusPreconditionRequired, "confirmation_required"
	case errors.Is(err, kanban.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, kanban.ErrUnknownCategory):
		return http.StatusUnprocessableEntity, "unknown_category"
	case errors.Is(err, kanban.ErrEmptyName), errors.Is(err, kanban.ErrMissingField), errors.Is(err, query.ErrInvalidFilter):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	}

	switch apiclient.KindOf(err) {
	case apiclient.KindAuthorization:
		return http.StatusForbidden, string(apiclient.KindAuthorization)
	case apiclient.KindValidation:
		return http.StatusUnprocessableEntity, string(apiclient.KindValidation)
	case apiclient.KindServer:
		return http.StatusBadGateway, string(apiclient.KindServer)
	case apiclient.KindTransport:
		return http.StatusGatewayTimeout, string(apiclient.KindTransport)
	}
	return http.StatusInternalServerError, "internal"
}
