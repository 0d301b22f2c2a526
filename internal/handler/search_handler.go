package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"codehelp-go/internal/service"
	"codehelp-go/pkg/log"
)

const (
	defaultSearchTopK = service.DefaultRetrievalK
	maxSearchTopK     = 50
)

// SearchHandler serves raw knowledge-index queries.
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// Search handles GET /search?query=...&topK=...
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		log.Warnf("[SearchHandler] empty query parameter")
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "query must not be empty", "data": nil})
		return
	}
	topK, err := strconv.Atoi(c.DefaultQuery("topK", strconv.Itoa(defaultSearchTopK)))
	if err != nil || topK <= 0 {
		topK = defaultSearchTopK
	}
	topK = min(topK, maxSearchTopK)

	results, err := h.searchService.Search(c.Request.Context(), query, topK)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrIndexUnavailable) {
			status = http.StatusServiceUnavailable
		}
		log.Errorf("[SearchHandler] search failed: %v", err)
		c.JSON(status, gin.H{"code": status, "message": "search failed", "data": nil})
		return
	}

	log.Infof("[SearchHandler] query '%s' returned %d results", query, len(results))
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": results})
}
