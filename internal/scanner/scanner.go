// Package scanner owns the connection to the fingerprint sensor. When no
// hardware is reachable the adapter falls back to a deterministic demo
// generator; the chosen mode is fixed for the adapter's lifetime so a process
// never mixes hardware and synthetic captures.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"umid/pkg/sentinel"
)

// ConnectionState tracks the adapter lifecycle. The only transitions are
// Disconnected → Connecting → Connected, or any failure during Connecting →
// Demo. There is no reconnect loop.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDemo         ConnectionState = "demo"
)

// ConnectionResult reports how adapter initialization ended. Callers branch on
// State explicitly instead of probing hidden mode flags.
type ConnectionResult struct {
	State  ConnectionState
	Port   string
	Reason string
}

// Config carries the sensor connection settings.
type Config struct {
	Port           string
	Baud           int
	CaptureTimeout time.Duration
	// DemoSeed makes demo-mode captures reproducible. 0 derives a seed from
	// the clock.
	DemoSeed int64
}

// Port is the transport to a physical sensor. Satisfied by a serial port in
// production and by scripted fakes in tests.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// DialFunc opens the transport to the sensor.
type DialFunc func(port string, baud int) (Port, error)

// RawImage is one captured fingerprint, already converted to the
// characteristic vector used for template storage and scoring.
type RawImage struct {
	Characteristics []int32
}

// Adapter is the exclusive owner of the sensor. Capture and slot operations
// serialize behind a mutex: one active scan session at a time.
type Adapter struct {
	mu    sync.Mutex
	state ConnectionState
	cfg   Config
	port  Port
	gen   *demoGenerator
	clock clockwork.Clock
}

type Option func(*connectOptions)

type connectOptions struct {
	dial  DialFunc
	clock clockwork.Clock
}

// WithDialer overrides how the sensor transport is opened.
func WithDialer(dial DialFunc) Option {
	return func(o *connectOptions) { o.dial = dial }
}

// WithClock injects the clock used for capture deadlines and demo pacing.
func WithClock(clock clockwork.Clock) Option {
	return func(o *connectOptions) { o.clock = clock }
}

// Connect initializes the adapter. Hardware or handshake failures are not
// fatal: the adapter comes up in Demo mode and the result says why.
func Connect(cfg Config, opts ...Option) (*Adapter, ConnectionResult) {
	o := connectOptions{dial: dialSerial, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = 30 * time.Second
	}

	a := &Adapter{state: StateConnecting, cfg: cfg, clock: o.clock}

	port, err := o.dial(cfg.Port, cfg.Baud)
	if err != nil {
		return a.fallbackToDemo(fmt.Sprintf("open %s: %v", cfg.Port, err))
	}
	if err := handshake(port); err != nil {
		_ = port.Close()
		return a.fallbackToDemo(fmt.Sprintf("handshake on %s: %v", cfg.Port, err))
	}

	a.state = StateConnected
	a.port = port
	return a, ConnectionResult{State: StateConnected, Port: cfg.Port}
}

func (a *Adapter) fallbackToDemo(reason string) (*Adapter, ConnectionResult) {
	seed := a.cfg.DemoSeed
	if seed == 0 {
		seed = a.clock.Now().UnixNano()
	}
	a.state = StateDemo
	a.gen = newDemoGenerator(seed)
	return a, ConnectionResult{State: StateDemo, Port: a.cfg.Port, Reason: reason}
}

// State reports the fixed adapter mode.
func (a *Adapter) State() ConnectionState {
	return a.state
}

// Capture blocks until a finger sample is available, the configured timeout
// elapses, or ctx is canceled. On timeout it returns sentinel.ErrTimeout; no
// retry happens here, callers re-invoke explicitly.
func (a *Adapter) Capture(ctx context.Context) (RawImage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	deadline := a.clock.Now().Add(a.cfg.CaptureTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return RawImage{}, err
		}
		if a.clock.Now().After(deadline) {
			return RawImage{}, fmt.Errorf("no finger within %s: %w", a.cfg.CaptureTimeout, sentinel.ErrTimeout)
		}

		img, ready, err := a.poll()
		if err != nil {
			return RawImage{}, err
		}
		if ready {
			return img, nil
		}

		select {
		case <-ctx.Done():
			return RawImage{}, ctx.Err()
		case <-a.clock.After(pollInterval):
		}
	}
}

const pollInterval = 200 * time.Millisecond

func (a *Adapter) poll() (RawImage, bool, error) {
	if a.state == StateDemo {
		return RawImage{Characteristics: a.gen.characteristics()}, true, nil
	}
	chars, ready, err := readImage(a.port)
	if err != nil {
		return RawImage{}, false, fmt.Errorf("sensor read: %w", err)
	}
	return RawImage{Characteristics: chars}, ready, nil
}

// StoreInSlot persists a template in the sensor's flash and returns the slot
// index. Only Connected adapters hold hardware-resident templates.
func (a *Adapter) StoreInSlot(characteristics []int32) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateConnected {
		return -1, fmt.Errorf("no hardware template storage in %s mode: %w", a.state, sentinel.ErrInvalidState)
	}
	slot, err := storeTemplate(a.port, characteristics)
	if err != nil {
		return -1, fmt.Errorf("store template: %w", err)
	}
	return slot, nil
}

// DeleteSlot removes a hardware-resident template. Deleting in Demo mode is a
// no-op so orphan cleanup can run unconditionally.
func (a *Adapter) DeleteSlot(slot int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateConnected || slot < 0 {
		return nil
	}
	if err := deleteTemplate(a.port, slot); err != nil {
		return fmt.Errorf("delete template slot %d: %w", slot, err)
	}
	return nil
}

// Close releases the serial port. Demo adapters have nothing to release.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.port != nil {
		err := a.port.Close()
		a.port = nil
		return err
	}
	return nil
}
