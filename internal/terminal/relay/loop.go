// Package relay moves child output from a transport to the display.
package relay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/minied/minied/internal/common/logger"
	"github.com/minied/minied/internal/terminal/decode"
	"github.com/minied/minied/internal/terminal/supervisor"
	"github.com/minied/minied/internal/terminal/transport"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 30 * time.Millisecond
	DefaultChunkSize    = 1024
	defaultBuffer       = 64
)

// Child reports the shell's liveness without blocking.
type Child interface {
	TryWait() supervisor.Liveness
}

// Sink receives decoded output. Both methods are called from the relay
// goroutine, not the GUI thread.
type Sink interface {
	AppendText(s string)
	AppendRaw(b []byte)
}

// Waker asks the GUI event loop to repaint.
type Waker interface {
	Awake()
}

// WakerFunc adapts a function to Waker.
type WakerFunc func()

func (f WakerFunc) Awake() { f() }

type nopWaker struct{}

func (nopWaker) Awake() {}

// Options tune the loop. Zero values select the defaults.
type Options struct {
	PollInterval time.Duration
	ChunkSize    int
	// Buffer is the number of chunks the read pump may hold between ticks.
	Buffer int
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Buffer <= 0 {
		o.Buffer = defaultBuffer
	}
	return o
}

// Stats are the loop's counters.
type Stats struct {
	Ticks           int64
	Chunks          int64
	Bytes           int64
	Bells           int64
	Appends         int64
	TransientErrors int64
}

type counters struct {
	ticks, chunks, bytes, bells, appends, transient atomic.Int64
}

// Loop relays output until the child exits or the context is cancelled.
type Loop struct {
	r      io.Reader
	child  Child
	filter *decode.Filter
	sink   Sink
	waker  Waker
	opts   Options
	logger *logger.Logger

	// ticks replaces the poll ticker when set.
	ticks <-chan time.Time

	started atomic.Bool
	stats   counters
}

// New builds a loop reading from r. filter may be nil for raw output.
func New(r io.Reader, child Child, filter *decode.Filter, sink Sink, waker Waker, opts Options, log *logger.Logger) *Loop {
	if filter == nil {
		filter = decode.NewFilter(decode.Options{})
	}
	if waker == nil {
		waker = nopWaker{}
	}
	return &Loop{
		r:      r,
		child:  child,
		filter: filter,
		sink:   sink,
		waker:  waker,
		opts:   opts.withDefaults(),
		logger: log.WithFields(zap.String("component", "relay")),
	}
}

// Run blocks until the child exits (nil) or ctx is done (ctx.Err()).
// It may only be called once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return errors.New("relay: loop already running")
	}

	stop := make(chan struct{})
	defer close(stop)

	chunks := make(chan []byte, l.opts.Buffer)
	pumpDone := make(chan struct{})
	go l.pump(chunks, stop, pumpDone)

	ticks, stopTicks := l.tickSource()
	defer stopTicks()

	l.logger.Debug("relay started",
		zap.Duration("poll_interval", l.opts.PollInterval),
		zap.Int("chunk_size", l.opts.ChunkSize))

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("relay cancelled", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticks:
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		l.stats.ticks.Add(1)

		live := l.child.TryWait()
		l.drain(chunks)
		if live.Alive() {
			continue
		}

		// Output written just before exit may still be in flight.
		timer := time.NewTimer(l.opts.PollInterval)
		select {
		case <-pumpDone:
		case <-timer.C:
		case <-ctx.Done():
		}
		timer.Stop()
		l.drain(chunks)

		l.logger.Debug("relay finished",
			zap.String("child", live.State.String()),
			zap.Int("exit_code", live.ExitCode),
			zap.Int64("bytes", l.stats.bytes.Load()),
			zap.Error(live.Err))
		return nil
	}
}

func (l *Loop) tickSource() (<-chan time.Time, func()) {
	if l.ticks != nil {
		return l.ticks, func() {}
	}
	t := time.NewTicker(l.opts.PollInterval)
	return t.C, t.Stop
}

// pump reads until the transport is closed. It is released by closing the
// transport, never joined.
func (l *Loop) pump(out chan<- []byte, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, l.opts.ChunkSize)
	for {
		n, err := l.r.Read(buf)
		if n > 0 {
			select {
			case out <- bytes.Clone(buf[:n]):
			case <-stop:
				return
			}
		}
		if err == nil {
			continue
		}
		if transport.IsClosed(err) {
			l.logger.Debug("transport closed", zap.Error(err))
			return
		}
		l.stats.transient.Add(1)
		l.logger.Debug("transient read error", zap.Error(err))
		select {
		case <-time.After(l.opts.PollInterval):
		case <-stop:
			return
		}
	}
}

// drain feeds everything pumped since the last tick to the filter as one
// batch.
func (l *Loop) drain(chunks <-chan []byte) {
	var batch []byte
collect:
	for {
		select {
		case c := <-chunks:
			l.stats.chunks.Add(1)
			if decode.IsBell(c) {
				l.stats.bells.Add(1)
				continue
			}
			batch = append(batch, c...)
		default:
			break collect
		}
	}
	if len(batch) == 0 {
		return
	}

	out, ok := l.filter.Feed(batch)
	if !ok {
		return
	}
	if out.Text {
		l.sink.AppendText(string(out.Data))
	} else {
		l.sink.AppendRaw(out.Data)
	}
	l.stats.bytes.Add(int64(len(out.Data)))
	l.stats.appends.Add(1)
	l.waker.Awake()
}

// Stats returns a snapshot of the loop's counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Ticks:           l.stats.ticks.Load(),
		Chunks:          l.stats.chunks.Load(),
		Bytes:           l.stats.bytes.Load(),
		Bells:           l.stats.bells.Load(),
		Appends:         l.stats.appends.Load(),
		TransientErrors: l.stats.transient.Load(),
	}
}
