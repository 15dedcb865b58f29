package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/pvnkmnk/rentFalcon/internal/sources"
	"github.com/pvnkmnk/rentFalcon/pkg/utils"
)

// RenderPage loads the URL in a headless browser and returns the rendered
// HTML. It exists for sources that assemble their listings client-side and
// return an empty shell to a plain HTTP client.
func RenderPage(ctx context.Context, source, url string, settle time.Duration) (string, error) {
	logger := utils.GetLogger().WithField("source", source)
	logger.WithField("url", url).Debug("Rendering page in headless browser")

	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")

	controlURL, err := l.Launch()
	if err != nil {
		return "", sources.NewNetworkError(source, fmt.Errorf("launch browser: %w", err))
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return "", sources.NewNetworkError(source, fmt.Errorf("connect browser: %w", err))
	}
	defer browser.Close()

	var html string
	err = rod.Try(func() {
		page := browser.Context(ctx).MustPage(url)
		page.MustWaitLoad()

		// Listing grids keep hydrating after load; give the scripts a moment.
		if settle > 0 {
			time.Sleep(settle)
		}
		html = page.MustHTML()
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", sources.Classify(source, ctx.Err())
		}
		return "", sources.NewNetworkError(source, fmt.Errorf("render page: %w", err))
	}

	return html, nil
}
