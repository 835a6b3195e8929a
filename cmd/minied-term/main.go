// Package main is the entry point for the minied-term binary.
// minied-term runs the editor's embedded terminal pane against the host
// terminal: keys typed locally go to the shell, shell output is mirrored
// back.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/minied/minied/internal/common/config"
	"github.com/minied/minied/internal/common/logger"
	"github.com/minied/minied/internal/editor"
	"github.com/minied/minied/internal/terminal/bridge"
	"github.com/minied/minied/internal/terminal/history"
	"github.com/minied/minied/internal/terminal/input"
	"github.com/minied/minied/internal/terminal/relay"
	"github.com/minied/minied/internal/terminal/tracing"
	"github.com/minied/minied/internal/terminal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "minied-term: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if err := tracing.Init(context.Background(), cfg.Tracing, log); err != nil {
		log.Warn("tracing disabled", zap.String("endpoint", cfg.Tracing.Endpoint), zap.Error(err))
	}

	dir := "."
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	hist := history.New(cfg.History.Limit)
	if cfg.History.Path != "" {
		if err := hist.Load(cfg.History.Path); err != nil {
			log.Warn("failed to load history", zap.String("path", cfg.History.Path), zap.Error(err))
		}
	}

	opts, err := bridge.OptionsFromConfig(cfg.Terminal)
	if err != nil {
		return err
	}

	stdinFd, stdoutFd := int(os.Stdin.Fd()), int(os.Stdout.Fd())
	interactive := term.IsTerminal(stdinFd)
	cols, rows := cfg.Terminal.Cols, cfg.Terminal.Rows
	if w, h, err := term.GetSize(stdoutFd); err == nil {
		cols, rows = w, h
		opts.Size = transport.Size{Cols: uint16(w), Rows: uint16(h)}
	}

	state, err := editor.NewState(dir, hist, opts, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	display := newMirror(os.Stdout, cols, rows)
	display.SetFocus(true)

	b, err := state.OpenTerminal(ctx, display, nil)
	if err != nil {
		return err
	}

	if interactive {
		old, err := term.MakeRaw(stdinFd)
		if err != nil {
			_ = state.CloseTerminal()
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
		defer func() { _ = term.Restore(stdinFd, old) }()
	}

	log.Info("terminal ready",
		zap.String("session_id", b.ID()),
		zap.Int("pid", b.Pid()),
		zap.String("transport", string(b.Kind())),
		zap.String("cwd", state.Dir()))

	keys := make(chan []byte, 16)
	go readStdin(keys)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eventLoop(gctx, b, display, keys, log)
	})
	g.Go(func() error {
		select {
		case <-b.Done():
			return b.Err()
		case <-gctx.Done():
			return nil
		}
	})
	waitErr := g.Wait()

	if err := state.CloseTerminal(); err != nil {
		log.Debug("close terminal", zap.Error(err))
	}
	if cfg.History.Path != "" {
		if err := hist.Save(cfg.History.Path); err != nil {
			log.Warn("failed to save history", zap.String("path", cfg.History.Path), zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Debug("tracing shutdown", zap.Error(err))
	}

	log.Info("terminal closed",
		zap.String("last_line", display.LastLine()),
		zap.String("child", b.Liveness().State.String()))

	if errors.Is(waitErr, context.Canceled) || errors.Is(waitErr, errStdinClosed) {
		return nil
	}
	return waitErr
}

var errStdinClosed = errors.New("stdin closed")

// readStdin blocks on stdin for the life of the process; it cannot be
// interrupted, so it is not part of the errgroup.
func readStdin(out chan<- []byte) {
	defer close(out)
	buf := make([]byte, 256)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			out <- append([]byte(nil), buf[:n]...)
		}
		if err != nil {
			return
		}
	}
}

// eventLoop is the GUI-thread stand-in: key routing and cursor blink run
// here and nowhere else.
func eventLoop(ctx context.Context, b *bridge.Bridge, display *mirror, keys <-chan []byte, log *logger.Logger) error {
	blinker := input.NewBlinker(display)
	blink := time.NewTicker(input.DefaultBlinkInterval)
	defer blink.Stop()

	winch := make(chan os.Signal, 1)
	notifyResize(winch)
	defer signal.Stop(winch)

	localEcho := b.Kind() == transport.KindPipe

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.Done():
			return nil
		case data, ok := <-keys:
			if !ok {
				return errStdinClosed
			}
			for _, ev := range parseKeys(data) {
				before := b.PendingLine()
				b.HandleEvent(ev)
				if localEcho {
					echoEvent(display, ev, before, b.PendingLine())
				}
			}
		case <-blink.C:
			blinker.Tick()
		case <-winch:
			w, h, err := term.GetSize(int(os.Stdout.Fd()))
			if err != nil {
				continue
			}
			display.Resize(w, h)
			if err := b.Resize(uint16(w), uint16(h)); err != nil {
				log.Debug("resize failed", zap.Error(err))
			}
		}
	}
}

// echoEvent redraws the edited line for shells that do not echo.
func echoEvent(display *mirror, ev input.Event, before, after string) {
	switch ev.Key {
	case input.KeyEnter:
		display.echo("\n")
		return
	case input.KeyInterrupt:
		display.echo("^C\n")
		return
	}
	common := commonPrefix(before, after)
	erase := utf8.RuneCountInString(before[common:])
	display.echo(strings.Repeat("\b \b", erase) + after[common:])
}

// commonPrefix returns the byte length of the shared rune prefix of a and b.
func commonPrefix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) {
		ra, sa := utf8.DecodeRuneInString(a[n:])
		rb, _ := utf8.DecodeRuneInString(b[n:])
		if ra != rb {
			break
		}
		n += sa
	}
	return n
}

var _ relay.Sink = (*mirror)(nil)
