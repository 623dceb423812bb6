package newsletter

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

const renderTimeout = 30 * time.Second

// renderPage loads a page in headless Chromium and returns the rendered
// document HTML. Some newsletter archives build their issue list with
// client-side JavaScript, so the static fetch sees an empty shell.
func renderPage(parentCtx context.Context, pageURL string) (string, error) {
	if pageURL == "" {
		return "", fmt.Errorf("render: URL is required")
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, renderTimeout)
	defer timeoutCancel()

	var outerHTML string
	tasks := chromedp.Tasks{
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Small extra delay to allow list hydration.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.OuterHTML("html", &outerHTML, chromedp.ByQuery),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return "", fmt.Errorf("render: chromedp run failed: %w", err)
	}

	return outerHTML, nil
}
