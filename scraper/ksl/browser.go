package ksl

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"ksl-notify/utils"
)

// BrowserEngine renders the search page in headless Chrome and returns the
// resulting DOM. It is the fallback for when the listings payload is no
// longer present in the raw page source.
type BrowserEngine struct {
	chromeBin string
	timeout   time.Duration
	logger    *utils.Logger
}

// NewBrowserEngine creates a BrowserEngine. chromeBin may be empty, in which
// case common install locations are probed.
func NewBrowserEngine(chromeBin string, timeout time.Duration, logger *utils.Logger) *BrowserEngine {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	return &BrowserEngine{chromeBin: chromeBin, timeout: timeout, logger: logger}
}

// FetchPage navigates to the URL, waits for the page scripts to run, and
// returns the rendered outer HTML.
func (e *BrowserEngine) FetchPage(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgents[0]),
	)
	if e.chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(e.chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, e.timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("ksl: browser fetch: %w", err)
	}

	e.logger.Debug("[ksl] browser rendered %d bytes for %s", len(html), pageURL)
	return html, nil
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
