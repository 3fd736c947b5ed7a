// Package capture renders the event screen page to a PNG with headless
// Chromium.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Phone-sized viewport; the screen page is laid out for it.
const (
	DefaultWidth   = 430
	DefaultHeight  = 932
	DefaultTimeout = 30 * time.Second

	// ReadySelector is present once the screen page has rendered its list.
	ReadySelector = `[data-ready="true"]`
)

type Options struct {
	// URL of the screen page, e.g. "http://127.0.0.1:8080/".
	URL string
	// OutputPath receives the PNG.
	OutputPath string

	// Username and Password are sent as HTTP Basic credentials when the
	// page is behind basic auth.
	Username string
	Password string

	Width   int
	Height  int
	Timeout time.Duration
}

// headers returns the extra request headers for the page load.
func (o Options) headers() network.Headers {
	if o.Username == "" && o.Password == "" {
		return nil
	}
	cred := base64.StdEncoding.EncodeToString([]byte(o.Username + ":" + o.Password))
	return network.Headers{"Authorization": "Basic " + cred}
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// CapturePNG loads opts.URL, waits for ReadySelector and writes a full-page
// screenshot to opts.OutputPath.
func CapturePNG(parent context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
	}
	if h := opts.headers(); h != nil {
		actions = append(actions, network.Enable(), network.SetExtraHTTPHeaders(h))
	}
	actions = append(actions,
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	)
	err := chromedp.Run(ctx, actions...)
	if err != nil {
		return fmt.Errorf("capture: chromedp run: %w", err)
	}

	return writeFile(opts.OutputPath, png)
}

// writeFile replaces path atomically so /preview.png never serves a
// half-written image.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".preview-*.png")
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("capture: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
