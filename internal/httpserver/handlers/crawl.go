package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/mw"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/pipeline"
	"github.com/MrSnakeDoc/hotdeals/internal/utils"
)

type crawlResponse struct {
	Message string             `json:"message"`
	Report  domain.CrawlReport `json:"report"`
}

// CrawlNow runs one crawl cycle synchronously and returns its report. The
// cycle outlives a client that hangs up, bounded by CrawlTimeout, so a
// closed tab never leaves a half-written batch behind.
func CrawlNow(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields := []logger.Field{logger.String("remote_ip", utils.ClientIP(r, d.TrustProxy))}
		if sub, ok := mw.Subject(r.Context()); ok {
			fields = append(fields, logger.String("subject", sub))
		}
		d.Logger.Info("manual crawl triggered via endpoint", fields...)

		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), d.CrawlTimeout)
		defer cancel()

		report, err := d.Crawler.RunOnce(ctx)
		switch {
		case errors.Is(err, pipeline.ErrCycleInProgress):
			writeJSON(w, http.StatusConflict, errorResponse{Error: "크롤링이 이미 진행 중입니다."}, d.Logger)
		case err != nil:
			writeJSON(w, http.StatusOK, crawlResponse{Message: "크롤링 중 저장에 실패했습니다.", Report: report}, d.Logger)
		default:
			writeJSON(w, http.StatusOK, crawlResponse{Message: "크롤링이 완료되었습니다.", Report: report}, d.Logger)
		}
	}
}
