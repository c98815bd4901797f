package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"investassist/internal/repository"
)

type RunHandler struct {
	Repo repository.Repository
}

func (h *RunHandler) Register(r *gin.Engine) {
	group := r.Group("/api/runs")
	group.GET("", h.listRuns)
	group.GET("/:scope", h.getRun)
}

func (h *RunHandler) listRuns(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListRunStates(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

func (h *RunHandler) getRun(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	scope := strings.TrimSpace(c.Param("scope"))
	item, err := h.Repo.GetRunState(c.Request.Context(), scope)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "unknown run scope", nil)
		return
	}
	Ok(c, item, nil)
}
