package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"codehelp-go/internal/index"
	"codehelp-go/internal/service"
	"codehelp-go/pkg/log"
)

// AdminHandler serves index maintenance endpoints.
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// IndexStatus reports the backend, marker state and document counts.
func (h *AdminHandler) IndexStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": h.adminService.IndexStatus(c.Request.Context())})
}

// RebuildIndex re-embeds the corpus. It blocks until the build finishes.
func (h *AdminHandler) RebuildIndex(c *gin.Context) {
	n, err := h.adminService.RebuildIndex(c.Request.Context())
	if err != nil {
		log.Errorf("[AdminHandler] rebuild failed: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, index.ErrMissingCorpus) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"code": status, "message": err.Error(), "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"documents": n}})
}
