package routes

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"saascribe-platform/internal/rag"
	"saascribe-platform/models"
	"saascribe-platform/services"
	"saascribe-platform/utils"

	"github.com/gin-gonic/gin"
)

// DocumentAPI is implemented by *services.DocumentService.
type DocumentAPI interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*models.DocumentResponse, error)
	List(ctx context.Context) ([]models.Document, error)
	Get(ctx context.Context, documentID string) (*models.DocumentResponse, error)
	Delete(ctx context.Context, documentID string) error
	EnsureIndexed(ctx context.Context, documentID string) (*rag.Namespace, error)
	Plan(ctx context.Context) (*models.PlanResponse, error)
}

// ExportAPI is implemented by *services.ExportService.
type ExportAPI interface {
	ExportTranscript(ctx context.Context, documentID, format string) (*services.Export, error)
}

type DocumentHandler struct {
	docs    DocumentAPI
	exports ExportAPI
	maxSize int64
}

func NewDocumentHandler(docs DocumentAPI, exports ExportAPI, maxSize int64) *DocumentHandler {
	return &DocumentHandler{docs: docs, exports: exports, maxSize: maxSize}
}

func SetupDocumentRoutes(router gin.IRouter, h *DocumentHandler, requireAuth ...gin.HandlerFunc) {
	docs := router.Group("/documents", requireAuth...)
	docs.POST("", h.upload)
	docs.GET("", h.list)
	docs.GET("/:id", h.get)
	docs.DELETE("/:id", h.delete)
	docs.POST("/:id/index", h.ensureIndexed)
	docs.GET("/:id/export", h.export)

	me := router.Group("/me", requireAuth...)
	me.GET("/plan", h.plan)
}

func (h *DocumentHandler) upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		utils.RespondWithBadRequest(c, "A PDF file is required in the 'file' field", gin.H{"error": err.Error()})
		return
	}
	if header.Size > h.maxSize {
		utils.RespondWithTooLarge(c, "File exceeds maximum size",
			gin.H{"max_size": h.maxSize, "received": header.Size})
		return
	}

	file, err := header.Open()
	if err != nil {
		utils.RespondWithBadRequest(c, "Could not read uploaded file", nil)
		return
	}
	defer file.Close()

	doc, err := h.docs.Upload(c.Request.Context(), header.Filename, file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *DocumentHandler) list(c *gin.Context) {
	docs, err := h.docs.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) get(c *gin.Context) {
	doc, err := h.docs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) delete(c *gin.Context) {
	if err := h.docs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DocumentHandler) ensureIndexed(c *gin.Context) {
	ns, err := h.docs.EnsureIndexed(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"namespace": ns.Name, "record_count": ns.RecordCount})
}

func (h *DocumentHandler) export(c *gin.Context) {
	out, err := h.exports.ExportTranscript(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(out.Filename))
	c.Data(http.StatusOK, out.ContentType, out.Data)
}

func (h *DocumentHandler) plan(c *gin.Context) {
	plan, err := h.docs.Plan(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}
