// Package bridge wires a transport, a shell, a relay loop and an input
// router into one terminal session.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minied/minied/internal/common/config"
	"github.com/minied/minied/internal/common/logger"
	"github.com/minied/minied/internal/terminal/decode"
	"github.com/minied/minied/internal/terminal/input"
	"github.com/minied/minied/internal/terminal/relay"
	"github.com/minied/minied/internal/terminal/supervisor"
	"github.com/minied/minied/internal/terminal/tracing"
	"github.com/minied/minied/internal/terminal/transport"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Options describe one terminal session.
type Options struct {
	Transport transport.Kind
	Size      transport.Size

	Shell     string
	ShellArgs []string
	TermType  string
	Dir       string
	Env       []string

	Relay  relay.Options
	Decode decode.Options
	Recall input.RecallPolicy
}

// Display is the terminal widget: relay output goes in, the router
// scrolls it on recall.
type Display interface {
	relay.Sink
	input.View
}

// Deps are the collaborators owned by the caller.
type Deps struct {
	Display Display
	Waker   relay.Waker
	History input.History
	Logger  *logger.Logger
}

// Bridge is one running terminal session.
type Bridge struct {
	id     string
	kind   transport.Kind
	logger *logger.Logger

	transport transport.Transport
	child     *supervisor.Handle
	loop      *relay.Loop
	router    *input.Router

	span   trace.Span
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	closeErr  error
}

// New starts a session. Creation and spawn errors are returned unchanged
// and nothing is left running.
func New(ctx context.Context, opts Options, deps Deps) (*Bridge, error) {
	if deps.Display == nil {
		return nil, errors.New("bridge: display is required")
	}
	if deps.History == nil {
		return nil, errors.New("bridge: history is required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}

	id := uuid.New().String()
	log = log.WithSessionID(id).WithFields(zap.String("component", "bridge"))

	kind := opts.Transport
	if kind == "" {
		kind = transport.KindPTY
	}

	sessionCtx, span := tracing.TraceSession(ctx, id, string(kind))

	_, createSpan := tracing.TraceTransportCreate(sessionCtx, string(kind), opts.Size.Cols, opts.Size.Rows)
	t, err := transport.New(kind, opts.Size)
	tracing.Finish(createSpan, err)
	if err != nil {
		log.Error("failed to create transport", zap.String("transport", string(kind)), zap.Error(err))
		tracing.Finish(span, err)
		return nil, err
	}

	_, spawnSpan := tracing.TraceSpawn(sessionCtx, opts.Shell, opts.Dir)
	child, err := supervisor.Spawn(t, supervisor.Options{
		Shell:    opts.Shell,
		Args:     opts.ShellArgs,
		Dir:      opts.Dir,
		Env:      opts.Env,
		TermType: opts.TermType,
	}, log)
	tracing.Finish(spawnSpan, err)
	if err != nil {
		log.Error("failed to spawn shell", zap.String("cwd", opts.Dir), zap.Error(err))
		_ = t.Close()
		tracing.Finish(span, err)
		return nil, err
	}

	newline := "\r"
	if kind == transport.KindPipe {
		newline = "\n"
	}

	runCtx, cancel := context.WithCancel(sessionCtx)
	b := &Bridge{
		id:        id,
		kind:      kind,
		logger:    log,
		transport: t,
		child:     child,
		loop:      relay.New(t, child, decode.NewFilter(opts.Decode), deps.Display, deps.Waker, opts.Relay, log),
		router: input.NewRouter(t, deps.History, deps.Display, input.Options{
			Recall:  opts.Recall,
			Newline: newline,
		}, log),
		span:   span,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go b.run(runCtx)

	log.Info("terminal session started",
		zap.String("transport", string(kind)),
		zap.Int("pid", child.Pid()),
		zap.String("shell", child.Shell()),
		zap.Strings("args", child.Args()),
		zap.String("cwd", child.Dir()))
	return b, nil
}

func (b *Bridge) run(ctx context.Context) {
	err := b.loop.Run(ctx)

	b.mu.Lock()
	b.err = err
	b.mu.Unlock()

	if err == nil {
		// Child is gone; release the handles it was using.
		_ = b.transport.Close()
	} else {
		// Cancelled by the caller's context: the shell is still attached.
		_ = b.Close()
	}

	rs, ts := b.loop.Stats(), b.transport.Stats()
	b.logger.Info("terminal session ended",
		zap.Int("pid", b.child.Pid()),
		zap.String("child", b.child.TryWait().State.String()),
		zap.Duration("uptime", time.Since(b.child.StartedAt())),
		zap.Int64("bytes_read", ts.BytesRead),
		zap.Int64("bytes_written", ts.BytesWritten),
		zap.Int64("appends", rs.Appends),
		zap.Int64("bells_dropped", rs.Bells),
		zap.Error(err))

	tracing.Finish(b.span, err)
	close(b.done)
}

// HandleEvent routes a key event to the shell. Call from the GUI thread.
func (b *Bridge) HandleEvent(ev input.Event) bool {
	return b.router.Handle(ev)
}

// Resize changes the PTY window size. A no-op for the pipe transport.
func (b *Bridge) Resize(cols, rows uint16) error {
	if err := b.transport.Resize(cols, rows); err != nil {
		return fmt.Errorf("resize terminal: %w", err)
	}
	return nil
}

// ID is the session identifier used in logs and spans.
func (b *Bridge) ID() string { return b.id }

func (b *Bridge) Pid() int { return b.child.Pid() }

func (b *Bridge) Kind() transport.Kind { return b.kind }

// PendingLine returns the line typed since the last Enter.
func (b *Bridge) PendingLine() string { return b.router.PendingLine() }

// Liveness reports the child's state without blocking.
func (b *Bridge) Liveness() supervisor.Liveness { return b.child.TryWait() }

// Done is closed when the relay loop has stopped.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Err is the relay loop result once Done is closed: nil when the child
// exited, the context error when the session was cancelled.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Close ends the session. It does not wait for the read pump, which is
// released by closing the transport. Safe to call more than once.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.cancel()
		var errs []error
		if err := b.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
		if err := b.child.Kill(); err != nil {
			errs = append(errs, err)
		}
		b.closeErr = errors.Join(errs...)
		b.logger.Debug("terminal session closed", zap.Error(b.closeErr))
	})
	return b.closeErr
}

// OptionsFromConfig maps the terminal configuration onto session options.
// Dir and Env are left for the caller.
func OptionsFromConfig(cfg config.TerminalConfig) (Options, error) {
	kind, err := transport.ParseKind(cfg.Transport)
	if err != nil {
		return Options{}, err
	}
	mode, err := decode.ParseMode(cfg.DecodeMode)
	if err != nil {
		return Options{}, err
	}
	recall, err := input.ParseRecallPolicy(cfg.RecallPolicy)
	if err != nil {
		return Options{}, err
	}

	var args []string
	if len(cfg.ShellArgs) > 0 {
		args = append(args, cfg.ShellArgs...)
	}

	return Options{
		Transport: kind,
		Size:      transport.Size{Cols: clampDim(cfg.Cols), Rows: clampDim(cfg.Rows)},
		Shell:     cfg.Shell,
		ShellArgs: args,
		TermType:  cfg.TermType,
		Relay: relay.Options{
			PollInterval: cfg.PollInterval(),
			ChunkSize:    cfg.ChunkSize,
		},
		Decode: decode.Options{
			Mode:         mode,
			StripEscapes: cfg.StripEscapes,
		},
		Recall: recall,
	}, nil
}

func clampDim(n int) uint16 {
	switch {
	case n <= 0:
		return 0
	case n > 0xffff:
		return 0xffff
	default:
		return uint16(n)
	}
}
