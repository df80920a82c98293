package deeplink

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"

	"github.com/AlexZinkM/walletlink/internal/model"

	log "github.com/sirupsen/logrus"
)

// Opener is the OS URL launcher
type Opener interface {
	// CanOpen reports whether some installed application handles the URL's scheme
	CanOpen(ctx context.Context, rawURL string) (bool, error)
	// Open launches the handler for the URL
	Open(ctx context.Context, rawURL string) error
}

// OpenWalletApp checks the URL can be resolved, then launches it
func OpenWalletApp(ctx context.Context, opener Opener, rawURL string) error {
	ok, err := opener.CanOpen(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("failed to check url handler: %w", err)
	}
	if !ok {
		return model.ErrWalletNotInstalled
	}
	if err := opener.Open(ctx, rawURL); err != nil {
		return fmt.Errorf("failed to open wallet app: %w", err)
	}
	return nil
}

// SystemOpener uses the desktop's URL handler registry
type SystemOpener struct{}

func (SystemOpener) CanOpen(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "":
		return false, nil
	case "http", "https":
		// Universal links fall back to the browser
		return true, nil
	}

	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		out, err := exec.CommandContext(ctx, "xdg-mime", "query", "default", "x-scheme-handler/"+scheme).Output()
		if err != nil {
			return false, nil
		}
		return len(bytes.TrimSpace(out)) > 0, nil
	case "windows":
		err := exec.CommandContext(ctx, "reg", "query", `HKCR\`+scheme, "/v", "URL Protocol").Run()
		return err == nil, nil
	default:
		// No registry to query; let Open report failures
		return true, nil
	}
}

// Open starts the platform launcher and returns without waiting for it. The launcher
// outlives ctx, which only gates the start.
func (SystemOpener) Open(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		cmd = exec.Command("xdg-open", rawURL)
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			log.WithError(err).WithField("launcher", cmd.Path).Warn("url launcher exited with error")
		}
	}()
	return nil
}
