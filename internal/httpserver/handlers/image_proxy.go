package handlers

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/utils"
)

const (
	imageProxyTimeout = 10 * time.Second
	maxImageBytes     = 10 << 20
	sniffLen          = 512
)

// ImageProxy fetches a thumbnail with the referer its site expects and
// streams it back. Any failure is a 404, and so is anything that is not an
// image. Private and loopback hosts are refused at dial time.
func ImageProxy(d deps.Deps) http.HandlerFunc {
	client := d.ImageClient
	if client == nil {
		client = utils.NewFetchClient(imageProxyTimeout, d.ImageProxyAllowPrivate)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := proxyTarget(r.URL.Query().Get("url"))
		if !ok {
			http.NotFound(w, r)
			return
		}

		referer := domain.DefaultReferer
		if src, ok := domain.ParseSource(r.URL.Query().Get("source")); ok {
			referer = src.Referer()
		}

		ctx, cancel := context.WithTimeout(r.Context(), imageProxyTimeout)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			cancel()
			http.NotFound(w, r)
			return
		}
		req.Header.Set("Referer", referer)
		if d.UserAgent != "" {
			req.Header.Set("User-Agent", d.UserAgent)
		}

		resp, err := client.Do(req)
		if err != nil {
			cancel()
			d.Logger.Debug("image proxy fetch failed", logger.String("url", target), logger.Error(err))
			http.NotFound(w, r)
			return
		}
		body := &utils.CancelOnClose{ReadCloser: resp.Body, Cancel: cancel}
		defer utils.MustClose(body, "image body", d.Logger)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			d.Logger.Debug("image proxy upstream error",
				logger.String("url", target),
				logger.Int("status", resp.StatusCode))
			http.NotFound(w, r)
			return
		}

		br := bufio.NewReaderSize(io.LimitReader(body, maxImageBytes), sniffLen)
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			head, _ := br.Peek(sniffLen)
			contentType = http.DetectContentType(head)
		}
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
			d.Logger.Debug("image proxy refused non-image",
				logger.String("url", target),
				logger.String("content_type", contentType))
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.WriteHeader(http.StatusOK)

		if _, err := io.Copy(w, br); err != nil {
			d.Logger.Debug("image proxy stream interrupted", logger.Error(err))
		}
	}
}

// proxyTarget accepts absolute http(s) URLs, upgrading protocol-relative ones.
func proxyTarget(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return u.String(), true
}
