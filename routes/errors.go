package routes

import (
	"context"
	"errors"
	"net/http"

	"saascribe-platform/internal/logger"
	"saascribe-platform/internal/rag"
	"saascribe-platform/services"
	"saascribe-platform/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps service and pipeline errors onto the JSON error envelope.
func respondError(c *gin.Context, err error) {
	var (
		denied    *services.DeniedError
		ingestErr *rag.IngestionError
		upErr     *rag.UpstreamError
	)

	switch {
	case errors.Is(err, rag.ErrAuth):
		utils.RespondWithUnauthorized(c, rag.ErrAuth.Error())
	case errors.Is(err, rag.ErrDocumentNotFound):
		utils.RespondWithNotFound(c, "Document not found")
	case errors.As(err, &denied):
		utils.RespondWithDenied(c, denied.Code, denied.Reason)
	case errors.Is(err, services.ErrNotPDF):
		utils.RespondWithBadRequest(c, "Only PDF documents can be uploaded", nil)
	case errors.Is(err, services.ErrObjectTooLarge):
		utils.RespondWithTooLarge(c, "File exceeds maximum size", nil)
	case errors.Is(err, services.ErrEmptyObject):
		utils.RespondWithBadRequest(c, "File is empty", nil)
	case errors.Is(err, services.ErrUnsupportedFormat):
		utils.RespondWithBadRequest(c, "Unsupported export format", gin.H{"formats": []string{services.FormatJSON, services.FormatXLSX}})
	case errors.As(err, &ingestErr):
		utils.RespondWithError(c, http.StatusUnprocessableEntity, utils.CodeIngestionFailed,
			ingestErr.Unwrap()[0].Error(), gin.H{"stage": ingestErr.Stage})
	case errors.As(err, &upErr):
		logger.FromContext(c.Request.Context()).Error("upstream failure", "service", upErr.Service, "op", upErr.Op, "error", upErr.Err)
		utils.RespondWithError(c, http.StatusBadGateway, utils.CodeUpstream,
			"A dependency failed, please try again", gin.H{"service": upErr.Service})
	case errors.Is(err, context.DeadlineExceeded):
		utils.RespondWithError(c, http.StatusGatewayTimeout, utils.CodeTimeout, "The request took too long, please try again", nil)
	default:
		logger.FromContext(c.Request.Context()).Error("request failed", "error", err)
		utils.RespondWithInternalError(c)
	}
}
