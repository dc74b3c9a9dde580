package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Garsondee/Pixel-Planet/internal/broadcast"
	"github.com/Garsondee/Pixel-Planet/internal/canvas"
	"github.com/Garsondee/Pixel-Planet/internal/config"
	"github.com/Garsondee/Pixel-Planet/internal/control"
	"github.com/Garsondee/Pixel-Planet/internal/game"
	"github.com/Garsondee/Pixel-Planet/internal/input"
	"github.com/Garsondee/Pixel-Planet/internal/logger"
	"github.com/Garsondee/Pixel-Planet/internal/metrics"
	"github.com/Garsondee/Pixel-Planet/internal/store"
)

const (
	storeTimeout = 2 * time.Second
	headlessTick = time.Second / 60
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	log, err := logger.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg, log); err != nil {
		log.Error("planet exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	st, err := store.OpenBolt(cfg.StorePath, storeTimeout)
	if err != nil {
		return err
	}
	defer st.Close()

	origin := uuid.NewString()
	log = log.With("origin", origin)
	transport := broadcast.Dial(ctx, broadcast.DialConfig{
		RedisURL:     cfg.RedisURL,
		Channel:      cfg.Channel,
		Origin:       origin,
		PollInterval: cfg.PollInterval,
	}, st, log)
	defer transport.Close()
	ch := broadcast.NewChannel(origin, transport, st,
		broadcast.WithLogger(log),
		broadcast.WithMetrics(m),
	)

	c := canvas.New(cfg, st, ch, canvas.WithLogger(log), canvas.WithMetrics(m))
	if err := c.Load(ctx); err != nil {
		return err
	}
	if cfg.Label != "" {
		if err := c.SetLabel(ctx, cfg.Label); err != nil {
			log.Warn("label not persisted", "err", err)
		}
	}
	sess := &canvas.Session{Canvas: c, Input: input.New(cfg)}
	mb := canvas.NewMailbox()

	bg, bgCtx := errgroup.WithContext(ctx)
	bgCtx, cancel := context.WithCancel(bgCtx)
	if err := ch.Start(bgCtx); err != nil {
		cancel()
		return fmt.Errorf("start sync channel: %w", err)
	}
	if cfg.ControlAddr != "" {
		srv := control.New(mb, m, log)
		sess.OnEvent(srv.Publish)
		bg.Go(func() error { return srv.ListenAndServe(bgCtx, cfg.ControlAddr) })
	}

	var runErr error
	if cfg.Headless {
		runErr = canvas.RunHeadless(bgCtx, sess, mb, headlessTick)
	} else {
		runErr = runWindow(bgCtx, cfg, sess, mb, m, log)
		mb.Close()
	}

	ch.Flush()
	cancel()
	if err := bg.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	log.Info("planet stopped")
	return runErr
}

func runWindow(ctx context.Context, cfg config.Config, sess *canvas.Session, mb *canvas.Mailbox, m *metrics.Metrics, log *slog.Logger) error {
	g, err := game.New(cfg, sess, mb, game.WithLogger(log), game.WithMetrics(m), game.WithDone(ctx.Done()))
	if err != nil {
		return err
	}
	ebiten.SetWindowTitle(fmt.Sprintf("Pixel Planet - %s", sess.Label()))
	ebiten.SetWindowSize(cfg.WindowWidth, cfg.WindowHeight)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(g)
}
