package transport

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// pipeTransport connects the child through two OS pipes.
// Child stdout and stderr share outW so both streams interleave on outR.
type pipeTransport struct {
	counters

	outR, outW *os.File // parent reads outR, child writes outW
	inR, inW   *os.File // child reads inR, parent writes inW

	mu        sync.Mutex
	started   bool
	closeOnce sync.Once
}

func newPipe() (*pipeTransport, error) {
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, creationError(KindPipe, fmt.Errorf("output pipe: %w", err))
	}
	inR, inW, err := os.Pipe()
	if err != nil {
		_ = outR.Close()
		_ = outW.Close()
		return nil, creationError(KindPipe, fmt.Errorf("input pipe: %w", err))
	}
	return &pipeTransport{outR: outR, outW: outW, inR: inR, inW: inW}, nil
}

func (p *pipeTransport) Kind() Kind { return KindPipe }

func (p *pipeTransport) Start(cmd *exec.Cmd) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("pipe transport already started")
	}

	cmd.Stdin = p.inR
	cmd.Stdout = p.outW
	cmd.Stderr = p.outW

	if err := cmd.Start(); err != nil {
		return err
	}

	// The child holds its own copies; keeping ours open would stop Read
	// from ever seeing EOF after the child exits.
	_ = p.outW.Close()
	_ = p.inR.Close()
	p.started = true
	return nil
}

func (p *pipeTransport) Read(b []byte) (int, error) {
	n, err := p.outR.Read(b)
	p.countRead(n)
	return n, err
}

func (p *pipeTransport) Write(b []byte) (int, error) {
	n, err := p.inW.Write(b)
	p.countWrite(n)
	return n, err
}

func (p *pipeTransport) Resize(cols, rows uint16) error { return nil }

func (p *pipeTransport) Close() error {
	p.closeOnce.Do(func() {
		_ = p.inW.Close()
		_ = p.outR.Close()
		p.mu.Lock()
		if !p.started {
			_ = p.outW.Close()
			_ = p.inR.Close()
		}
		p.mu.Unlock()
	})
	return nil
}
