package web

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/browser"

	apperrors "github.com/conorfennell/hashcards/internal/errors"
)

const (
	pollInterval = 100 * time.Millisecond
	pollAttempts = 50
)

// Opener opens a URL for the user.
type Opener func(url string) error

// DefaultOpener uses the platform's URL handler.
var DefaultOpener Opener = browser.OpenURL

// WaitAndOpen polls addr until it accepts a TCP connection, then opens url.
// It gives up after a bounded number of attempts. A failure to open the
// browser is only logged: the server is reachable by hand.
func WaitAndOpen(ctx context.Context, addr, url string, open Opener) error {
	dial := func() error {
		conn, err := net.DialTimeout("tcp", addr, pollInterval)
		if err != nil {
			return err
		}
		return conn.Close()
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(pollInterval), pollAttempts),
		ctx,
	)
	if err := backoff.Retry(dial, policy); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "server at "+addr+" never became reachable", err)
	}

	slog.Info("opening browser", "url", url)
	if err := open(url); err != nil {
		slog.Warn("failed to open browser", "url", url, "err", err)
	}
	return nil
}

// BrowserURL is the address a browser should use for a listener bound to
// addr. Unspecified hosts are replaced by loopback.
func BrowserURL(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return "http://" + addr.String() + "/"
	}
	host := tcp.IP
	if host == nil || host.IsUnspecified() {
		host = net.IPv4(127, 0, 0, 1)
	}
	return "http://" + net.JoinHostPort(host.String(), strconv.Itoa(tcp.Port)) + "/"
}
