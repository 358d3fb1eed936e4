package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"robolink/internal/services"
)

type ReportHandler struct {
	Service *services.ReportService
}

func NewReportHandler(service *services.ReportService) *ReportHandler {
	return &ReportHandler{Service: service}
}

// @Summary      Сводка по привязкам
// @Tags         Reports
// @Produce      json
// @Success      200  {object}  models.VerificationSummary
// @Security     BearerAuth
// @Router       /reports/verifications/summary [get]
func (h *ReportHandler) GetSummary(c *gin.Context) {
	data, err := h.Service.Summary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

// @Summary      Выгрузка привязок в PDF
// @Tags         Reports
// @Produce      application/pdf
// @Success      200  {file}  binary
// @Security     BearerAuth
// @Router       /reports/verifications/export [get]
func (h *ReportHandler) ExportPDF(c *gin.Context) {
	abs, err := h.Service.ExportPDF(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// attachment
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(abs)))
	c.File(abs)
}
