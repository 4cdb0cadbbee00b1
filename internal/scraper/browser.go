package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/MrSnakeDoc/hotdeals/internal/logger"
)

// ErrNothingVisible is returned when none of the wait selectors showed up.
var ErrNothingVisible = errors.New("no wait selector became visible")

// hideWebdriverJS runs before any page script so automation checks see a
// regular browser.
const hideWebdriverJS = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// blockedResources are never downloaded while rendering list pages.
var blockedResources = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico",
	"*.woff", "*.woff2", "*.ttf", "*.otf",
	"*.css",
}

// ChromeRenderer renders pages in a fresh headless Chrome per call. Calls are
// serialized: at most one browser runs at a time.
type ChromeRenderer struct {
	execPath  string
	userAgent string
	log       logger.Logger

	mu sync.Mutex
}

// NewChromeRenderer creates a renderer. An empty execPath lets chromedp find
// the browser on PATH.
func NewChromeRenderer(execPath, userAgent string, log logger.Logger) *ChromeRenderer {
	return &ChromeRenderer{
		execPath:  execPath,
		userAgent: userAgent,
		log:       log.Named("browser"),
	}
}

func (r *ChromeRenderer) Render(ctx context.Context, url string, waitFor []string, waitTimeout time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.UserAgent(r.userAgent),
		chromedp.WindowSize(1366, 900),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("lang", "ko-KR"),
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	start := time.Now()
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetBlockedURLS(blockedResources),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverJS).Do(ctx)
			return err
		}),
		chromedp.Navigate(url),
	)
	if err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}

	if err := r.waitAny(tabCtx, waitFor, waitTimeout); err != nil {
		return "", err
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read dom: %w", err)
	}

	r.log.Debug("rendered page",
		logger.String("url", url),
		logger.Duration("took", time.Since(start)),
		logger.Int("bytes", len(html)),
	)
	return html, nil
}

// waitAny waits for the selectors in order and stops at the first visible one.
func (r *ChromeRenderer) waitAny(ctx context.Context, selectors []string, timeout time.Duration) error {
	for _, sel := range selectors {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		err := chromedp.Run(waitCtx, chromedp.WaitVisible(sel, chromedp.ByQuery))
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Debug("wait selector not visible", logger.String("selector", sel), logger.Error(err))
	}
	return ErrNothingVisible
}
