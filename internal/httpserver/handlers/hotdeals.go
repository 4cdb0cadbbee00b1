package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/store/sqlite"
)

type dealItem struct {
	ID         int64         `json:"id"`
	Thumbnail  string        `json:"thumbnail"`
	Source     domain.Source `json:"source"`
	SourceName string        `json:"source_name"`
	Author     string        `json:"author"`
	Title      string        `json:"title"`
	Price      string        `json:"price"`
	Shipping   string        `json:"shipping"`
	Link       string        `json:"link"`
	CreatedAt  string        `json:"created_at"`
}

type hotdealsResponse struct {
	Items      []dealItem `json:"items"`
	Page       int        `json:"page"`
	PerPage    int        `json:"per_page"`
	Total      int        `json:"total"`
	TotalPages int        `json:"total_pages"`
}

func toItem(d domain.StoredDeal) dealItem {
	return dealItem{
		ID:         d.ID,
		Thumbnail:  d.Thumbnail,
		Source:     d.Source,
		SourceName: d.Source.DisplayName(),
		Author:     d.Author,
		Title:      d.Title,
		Price:      d.Price,
		Shipping:   d.Shipping,
		Link:       d.Link,
		CreatedAt:  d.CreatedAt.Format(domain.TimestampLayout),
	}
}

// Hotdeals lists stored deals, newest first.
// Query: source (key, display name, "all" or empty), page, per_page.
func Hotdeals(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var src domain.Source
		if raw := strings.TrimSpace(q.Get("source")); raw != "" && !strings.EqualFold(raw, "all") {
			parsed, ok := domain.ParseSource(raw)
			if !ok {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown source"}, d.Logger)
				return
			}
			src = parsed
		}

		lq := sqlite.ListQuery{
			Source:  src,
			Page:    atoiDefault(q.Get("page"), 1),
			PerPage: atoiDefault(q.Get("per_page"), sqlite.DefaultPerPage),
		}.Normalize()

		deals, total, err := d.Deals.List(r.Context(), lq)
		if err != nil {
			// worst case is an empty page, never a raw error
			d.Logger.Error("failed to list deals", logger.Error(err))
			deals, total = nil, 0
		}

		items := make([]dealItem, 0, len(deals))
		for _, deal := range deals {
			items = append(items, toItem(deal))
		}

		writeJSON(w, http.StatusOK, hotdealsResponse{
			Items:      items,
			Page:       lq.Page,
			PerPage:    lq.PerPage,
			Total:      total,
			TotalPages: (total + lq.PerPage - 1) / lq.PerPage,
		}, d.Logger)
	}
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
