package routes

import (
	"context"
	"errors"
	"io"
	"net/http"

	"saascribe-platform/internal/logger"
	"saascribe-platform/services"
	"saascribe-platform/utils"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// WebhookHandler is implemented by *services.BillingService.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
}

func SetupBillingRoutes(router gin.IRouter, billing WebhookHandler) {
	router.POST("/billing/webhook", func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			utils.RespondWithBadRequest(c, "Could not read request body", nil)
			return
		}

		err = billing.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"received": true})
		case errors.Is(err, services.ErrWebhookSignature):
			utils.RespondWithError(c, http.StatusBadRequest, utils.CodeInvalidSignature, "Webhook signature verification failed", nil)
		case errors.Is(err, services.ErrUnknownCustomer), errors.Is(err, services.ErrMalformedEvent):
			logger.FromContext(c.Request.Context()).Warn("rejected billing event", "error", err)
			utils.RespondWithBadRequest(c, err.Error(), nil)
		default:
			respondError(c, err)
		}
	})
}
