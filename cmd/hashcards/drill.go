package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/pflag"

	"github.com/conorfennell/hashcards/internal/config"
	"github.com/conorfennell/hashcards/internal/drill"
	"github.com/conorfennell/hashcards/internal/scheduler"
	"github.com/conorfennell/hashcards/internal/storage"
	"github.com/conorfennell/hashcards/internal/web"
)

const shutdownTimeout = 5 * time.Second

func runDrill(args []string, stdout, stderr io.Writer) int {
	fs, verbose := newFlagSet("drill", "Review the cards that are due in a browser.", stderr)
	config.RegisterDrillFlags(fs)
	if code := parseArgs(fs, args); code >= 0 {
		return code
	}
	setupLogging(stderr, *verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := drillCollection(ctx, fs, stdout, web.DefaultOpener); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// drillCollection serves one session until ctx is cancelled.
func drillCollection(ctx context.Context, fs *pflag.FlagSet, stdout io.Writer, open web.Opener) error {
	cards, err := openCollection(fs.Arg(0))
	if err != nil {
		return err
	}
	if err := cards.Err(); err != nil {
		for _, problem := range cards.Problems() {
			slog.Error("invalid card source", "err", problem)
		}
		return err
	}
	for _, dup := range cards.Duplicates {
		slog.Warn("duplicate card ignored",
			"path", dup.Card.Path,
			"line", dup.Card.Line,
			"original", fmt.Sprintf("%s:%d", dup.Original.Path, dup.Original.Line),
		)
	}

	cfg, err := config.Load(cards.Root, fs)
	if err != nil {
		return err
	}

	db, err := storage.Open(filepath.Join(cards.Root, storage.Filename))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close database", "err", err)
		}
	}()

	session, err := drill.NewSession(ctx, cards, db, drill.Config{
		Options: drill.Options{
			CardLimit:    cfg.CardLimit,
			NewCardLimit: cfg.NewCardLimit,
			DeckFilter:   cfg.FromDeck,
			Shuffle:      true,
			BurySiblings: cfg.BurySiblings,
			Now:          time.Now().UTC().Truncate(time.Second),
		},
		Controls: cfg.Controls(),
		Params:   scheduler.DefaultParams(),
	})
	if err != nil {
		return err
	}

	handler, err := web.NewServer(session)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}
	link := web.BrowserURL(ln.Addr())

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 2)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("server failed: %w", err)
		}
	}()

	fmt.Fprintf(stdout, "Drilling %s at %s\n", english.Plural(session.Progress().Remaining, "card", ""), link)

	if cfg.OpenBrowser {
		go func() {
			u, err := url.Parse(link)
			if err != nil {
				errc <- err
				return
			}
			if err := web.WaitAndOpen(ctx, u.Host, link, open); err != nil {
				errc <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Signal caught, shutting down")
	case runErr = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to drain requests", "err", err)
	}

	p := session.Progress()
	fmt.Fprintf(stdout, "Answered %s (%d new), %d remaining\n",
		english.Plural(p.Answered, "card", ""), p.NewAnswered, p.Remaining)
	return runErr
}
