package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"investassist/internal/repository"
)

type IndicatorHandler struct {
	Repo repository.Repository
}

func (h *IndicatorHandler) Register(r *gin.Engine) {
	group := r.Group("/api/indicators")
	group.GET("", h.listLatest)
}

type indicatorItem struct {
	Ticker   string   `json:"ticker"`
	Date     string   `json:"date"`
	SMAShort *float64 `json:"sma_short"`
	SMALong  *float64 `json:"sma_long"`
	RSI      *float64 `json:"rsi"`
}

func (h *IndicatorHandler) listLatest(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	rows, err := h.Repo.ListLatestIndicators(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	items := make([]indicatorItem, len(rows))
	for i, row := range rows {
		items[i] = indicatorItem{
			Ticker:   row.Ticker,
			Date:     row.Date.UTC().Format("2006-01-02"),
			SMAShort: row.SMAShort,
			SMALong:  row.SMALong,
			RSI:      row.RSI,
		}
	}
	Ok(c, items, map[string]any{"count": len(items), "as_of": time.Now().UTC().Format(time.RFC3339)})
}
