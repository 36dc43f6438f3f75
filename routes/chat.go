package routes

import (
	"context"
	"net/http"

	"saascribe-platform/models"
	"saascribe-platform/services"
	"saascribe-platform/utils"

	"github.com/gin-gonic/gin"
)

// ChatAPI is implemented by *services.ChatService.
type ChatAPI interface {
	AskQuestion(ctx context.Context, documentID, question string) (*services.AskResult, error)
	History(ctx context.Context, documentID string) ([]models.ChatMessage, error)
}

type ChatHandler struct {
	chat ChatAPI
}

func NewChatHandler(chat ChatAPI) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func SetupChatRoutes(router gin.IRouter, h *ChatHandler, requireAuth ...gin.HandlerFunc) {
	docs := router.Group("/documents", requireAuth...)
	docs.POST("/:id/ask", h.ask)
	docs.GET("/:id/messages", h.messages)
}

// ask answers 200 both when the question was answered and when the plan
// denied it; the body's allowed flag tells them apart.
func (h *ChatHandler) ask(c *gin.Context) {
	var req models.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, utils.CodeInvalidInput, "Invalid request data", gin.H{"error": err.Error()})
		return
	}

	res, err := h.chat.AskQuestion(c.Request.Context(), c.Param("id"), req.Question)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Response())
}

func (h *ChatHandler) messages(c *gin.Context) {
	msgs, err := h.chat.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
