package scanner

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umid/pkg/sentinel"
)

// fakeSensor speaks the sensor packet protocol from memory. Command packets
// get scripted acks queued onto the read side; data packets are swallowed.
type fakeSensor struct {
	reads bytes.Buffer

	rejectPassword bool
	noFingerPolls  int
	chars          []byte
	templateCount  uint16
	closed         bool
}

func (f *fakeSensor) Read(p []byte) (int, error) {
	return f.reads.Read(p)
}

func (f *fakeSensor) Write(p []byte) (int, error) {
	if len(p) < 10 || p[6] != packetTypeCommand {
		// data packet from a template download, no response needed
		return len(p), nil
	}
	switch cmd := p[9]; cmd {
	case cmdVerifyPassword:
		if f.rejectPassword {
			f.queueAck(0x13, nil)
		} else {
			f.queueAck(ackOK, nil)
		}
	case cmdGetImage:
		if f.noFingerPolls > 0 {
			f.noFingerPolls--
			f.queueAck(ackNoFinger, nil)
		} else {
			f.queueAck(ackOK, nil)
		}
	case cmdImageToChar, cmdDownChar, cmdStoreChar, cmdDeleteChar:
		f.queueAck(ackOK, nil)
	case cmdUpChar:
		f.queueAck(ackOK, nil)
		_ = writePacket(&f.reads, packetTypeEndData, f.chars)
	case cmdTemplateCount:
		f.queueAck(ackOK, []byte{byte(f.templateCount >> 8), byte(f.templateCount)})
	}
	return len(p), nil
}

func (f *fakeSensor) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSensor) queueAck(code byte, extra []byte) {
	_ = writePacket(&f.reads, packetTypeAck, append([]byte{code}, extra...))
}

func dialTo(sensor *fakeSensor) DialFunc {
	return func(string, int) (Port, error) { return sensor, nil }
}

func failingDial(string, int) (Port, error) {
	return nil, errors.New("no such device")
}

func TestConnect(t *testing.T) {
	t.Run("reachable sensor connects", func(t *testing.T) {
		sensor := &fakeSensor{}
		a, result := Connect(Config{Port: "/dev/ttyUSB0", Baud: 57600}, WithDialer(dialTo(sensor)))

		assert.Equal(t, StateConnected, result.State)
		assert.Equal(t, StateConnected, a.State())
		assert.Equal(t, "/dev/ttyUSB0", result.Port)
		assert.Empty(t, result.Reason)
	})

	t.Run("unreachable port falls back to demo", func(t *testing.T) {
		a, result := Connect(Config{Port: "/dev/ttyUSB0"}, WithDialer(failingDial))

		assert.Equal(t, StateDemo, result.State)
		assert.Equal(t, StateDemo, a.State())
		assert.Contains(t, result.Reason, "open /dev/ttyUSB0")
	})

	t.Run("rejected handshake falls back to demo and closes the port", func(t *testing.T) {
		sensor := &fakeSensor{rejectPassword: true}
		a, result := Connect(Config{Port: "/dev/ttyUSB0"}, WithDialer(dialTo(sensor)))

		assert.Equal(t, StateDemo, a.State())
		assert.Contains(t, result.Reason, "handshake")
		assert.True(t, sensor.closed)
	})
}

func TestDemoCapture(t *testing.T) {
	demo := func(seed int64) *Adapter {
		a, result := Connect(Config{DemoSeed: seed}, WithDialer(failingDial))
		require.Equal(t, StateDemo, result.State)
		return a
	}

	t.Run("captures are immediate and structurally valid", func(t *testing.T) {
		a := demo(42)
		img, err := a.Capture(context.Background())
		require.NoError(t, err)
		assert.Len(t, img.Characteristics, characteristicLength)
	})

	t.Run("same seed reproduces the same captures", func(t *testing.T) {
		a, b := demo(7), demo(7)

		imgA, err := a.Capture(context.Background())
		require.NoError(t, err)
		imgB, err := b.Capture(context.Background())
		require.NoError(t, err)
		assert.Equal(t, imgA.Characteristics, imgB.Characteristics)
	})

	t.Run("consecutive captures differ", func(t *testing.T) {
		a := demo(7)
		first, err := a.Capture(context.Background())
		require.NoError(t, err)
		second, err := a.Capture(context.Background())
		require.NoError(t, err)
		assert.NotEqual(t, first.Characteristics, second.Characteristics)
	})
}

func TestConnectedCapture(t *testing.T) {
	t.Run("waits through empty polls until a finger arrives", func(t *testing.T) {
		sensor := &fakeSensor{noFingerPolls: 2, chars: []byte{1, 2, 3, 4}}
		a, result := Connect(Config{CaptureTimeout: 5 * time.Second}, WithDialer(dialTo(sensor)))
		require.Equal(t, StateConnected, result.State)

		img, err := a.Capture(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int32{1, 2, 3, 4}, img.Characteristics)
	})

	t.Run("times out when no finger ever arrives", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		sensor := &fakeSensor{noFingerPolls: 1 << 30}
		a, result := Connect(Config{CaptureTimeout: 500 * time.Millisecond},
			WithDialer(dialTo(sensor)), WithClock(clock))
		require.Equal(t, StateConnected, result.State)

		done := make(chan error, 1)
		go func() {
			_, err := a.Capture(context.Background())
			done <- err
		}()

		deadline := time.After(5 * time.Second)
		for {
			select {
			case err := <-done:
				require.ErrorIs(t, err, sentinel.ErrTimeout)
				return
			case <-deadline:
				t.Fatal("capture did not time out")
			case <-time.After(10 * time.Millisecond):
				clock.Advance(pollInterval)
			}
		}
	})

	t.Run("context cancellation interrupts the poll loop", func(t *testing.T) {
		sensor := &fakeSensor{noFingerPolls: 1 << 30}
		a, result := Connect(Config{CaptureTimeout: time.Hour}, WithDialer(dialTo(sensor)))
		require.Equal(t, StateConnected, result.State)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := a.Capture(ctx)
			done <- err
		}()
		cancel()

		select {
		case err := <-done:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Fatal("capture did not observe cancellation")
		}
	})
}

func TestSlotOperations(t *testing.T) {
	t.Run("connected adapter stores and deletes templates", func(t *testing.T) {
		sensor := &fakeSensor{templateCount: 5}
		a, result := Connect(Config{}, WithDialer(dialTo(sensor)))
		require.Equal(t, StateConnected, result.State)

		slot, err := a.StoreInSlot([]int32{10, 20, 30})
		require.NoError(t, err)
		assert.Equal(t, 5, slot)

		assert.NoError(t, a.DeleteSlot(slot))
	})

	t.Run("demo adapter refuses hardware storage", func(t *testing.T) {
		a, _ := Connect(Config{}, WithDialer(failingDial))

		_, err := a.StoreInSlot([]int32{1})
		require.ErrorIs(t, err, sentinel.ErrInvalidState)
	})

	t.Run("demo slot deletion is a no-op", func(t *testing.T) {
		a, _ := Connect(Config{}, WithDialer(failingDial))
		assert.NoError(t, a.DeleteSlot(3))
		assert.NoError(t, a.DeleteSlot(-1))
	})
}
