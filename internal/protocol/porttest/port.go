// Package porttest provides a scripted serial port for exercising drivers without hardware.
package porttest

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"lab-rig-service/internal/protocol"
)

// ErrClosed is returned by a closed fake port
var ErrClosed = errors.New("port closed")

// Port records every written frame and answers scripted commands
type Port struct {
	mu       sync.Mutex
	replies  map[string]string
	writes   []string
	inbound  []byte
	closed   bool
	handles  int
	peak     int
	onWrite  func(frame string)
	timeout  time.Duration
	WriteErr error
	ReadErr  error
}

// NewPort returns an open fake port with no scripted replies
func NewPort() *Port {
	return &Port{replies: make(map[string]string)}
}

// Reply scripts the line returned for a command. The command is matched without its
// terminator; a trailing "\r\n" is added to the reply when it has no newline.
func (p *Port) Reply(command, reply string) *Port {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !strings.HasSuffix(reply, "\n") {
		reply += "\r\n"
	}
	p.replies[command] = reply
	return p
}

// Inject queues raw inbound bytes regardless of what is written
func (p *Port) Inject(raw []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbound = append(p.inbound, raw...)
}

// OnWrite registers fn to run before every write; fn may block to hold an exchange open
func (p *Port) OnWrite(fn func(frame string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onWrite = fn
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	hook := p.onWrite
	p.mu.Unlock()
	if hook != nil {
		hook(string(b))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}
	if p.WriteErr != nil {
		return 0, p.WriteErr
	}

	frame := string(b)
	p.writes = append(p.writes, frame)

	if reply, ok := p.replies[strings.TrimRight(frame, "\r\n")]; ok {
		p.inbound = append(p.inbound, reply...)
	}
	return len(b), nil
}

// Read returns queued bytes, or 0 and no error when nothing is queued, which is how
// go.bug.st/serial reports a read timeout.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}
	if p.ReadErr != nil {
		return 0, p.ReadErr
	}

	n := copy(b, p.inbound)
	p.inbound = p.inbound[n:]
	return n, nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handles > 0 {
		p.handles--
	}
	p.closed = p.handles == 0
	return nil
}

// PeakHandles returns the most handles that were open on the port at once
func (p *Port) PeakHandles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

func (p *Port) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t
	return nil
}

// Frames returns every written frame including terminators
func (p *Port) Frames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

// Commands returns every written frame without its terminator
func (p *Port) Commands() []string {
	frames := p.Frames()
	commands := make([]string, len(frames))
	for i, f := range frames {
		commands[i] = strings.TrimRight(f, "\r\n")
	}
	return commands
}

// Count returns how many times a command was written
func (p *Port) Count(command string) int {
	count := 0
	for _, c := range p.Commands() {
		if c == command {
			count++
		}
	}
	return count
}

// Clear forgets recorded writes
func (p *Port) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = nil
}

// IsClosed reports whether Close was called
func (p *Port) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Bank hands out fake ports by name and remembers the mode each was opened with
type Bank struct {
	mu     sync.Mutex
	ports  map[string]*Port
	modes  map[string]serial.Mode
	failed map[string]error
}

// NewBank returns an empty bank
func NewBank() *Bank {
	return &Bank{
		ports:  make(map[string]*Port),
		modes:  make(map[string]serial.Mode),
		failed: make(map[string]error),
	}
}

// Port returns the fake behind name, creating it on first use
func (b *Bank) Port(name string) *Port {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.ports[name]
	if !ok {
		p = NewPort()
		b.ports[name] = p
	}
	return p
}

// Fail makes opening name return err
func (b *Bank) Fail(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failed[name] = err
}

// Mode returns the mode name was opened with
func (b *Bank) Mode(name string) (serial.Mode, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.modes[name]
	return m, ok
}

// Opener satisfies protocol.Opener
func (b *Bank) Opener() protocol.Opener {
	return func(name string, mode *serial.Mode) (protocol.Port, error) {
		b.mu.Lock()
		err := b.failed[name]
		if err == nil {
			b.modes[name] = *mode
		}
		b.mu.Unlock()

		if err != nil {
			return nil, err
		}

		port := b.Port(name)
		port.mu.Lock()
		port.closed = false
		port.handles++
		if port.handles > port.peak {
			port.peak = port.handles
		}
		port.mu.Unlock()
		return port, nil
	}
}

// ReadTimeout returns the timeout the transport configured
func (p *Port) ReadTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeout
}
