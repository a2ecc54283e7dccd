package serial

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/jacobsa/go-serial/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/wifi-heatmap/internal/motion"
)

// timeoutPort behaves like a tty opened with a read timeout: Read returns io.EOF with no
// bytes when the deadline passes, and Close does not unblock a pending Read.
type timeoutPort struct {
	chunks   chan string
	deadline time.Duration
}

func newTimeoutPort() *timeoutPort {
	return &timeoutPort{chunks: make(chan string, 8), deadline: 20 * time.Millisecond}
}

func (p *timeoutPort) Read(b []byte) (int, error) {
	select {
	case chunk := <-p.chunks:
		return copy(b, chunk), nil
	case <-time.After(p.deadline):
		return 0, io.EOF
	}
}

func (p *timeoutPort) Write(b []byte) (int, error) { return len(b), nil }
func (p *timeoutPort) Close() error                { return nil }

func TestStream(t *testing.T) {
	port := newTimeoutPort()

	var opened serial.OpenOptions
	src, err := New(Config{Port: "/dev/ttyUSB0", StepSensor: true}, WithOpener(func(o serial.OpenOptions) (io.ReadWriteCloser, error) {
		opened = o
		return port, nil
	}))
	require.NoError(t, err)
	assert.True(t, src.Capabilities().StepSensor)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan motion.Event, 8)
	done := make(chan error, 1)
	go func() { done <- src.Stream(ctx, events) }()

	// lines split across reads
	port.chunks <- "A,0,0,9."
	port.chunks <- "81\nnoise\n"
	port.chunks <- "S\n"

	ev := <-events
	assert.Equal(t, motion.KindAccelerometer, ev.Kind)
	assert.Equal(t, r3.Vector{X: 0, Y: 0, Z: 9.81}, ev.Vector)
	assert.Equal(t, motion.KindStep, (<-events).Kind)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stream() did not return after cancellation")
	}

	assert.Equal(t, uint(DefaultBaudRate), opened.BaudRate)
	assert.Equal(t, "/dev/ttyUSB0", opened.PortName)
	assert.Equal(t, uint(0), opened.MinimumReadSize)
	assert.Equal(t, uint(readTimeout), opened.InterCharacterTimeout)
}

func TestStreamSilentPortStops(t *testing.T) {
	src, err := New(Config{Port: "/dev/ttyUSB0"}, WithOpener(func(serial.OpenOptions) (io.ReadWriteCloser, error) {
		return newTimeoutPort(), nil
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Stream(ctx, make(chan motion.Event)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stream() did not return after cancellation on a silent port")
	}
}

func TestStreamTooManyParseErrors(t *testing.T) {
	port := newTimeoutPort()
	src, err := New(Config{Port: "/dev/ttyUSB0"}, WithOpener(func(serial.OpenOptions) (io.ReadWriteCloser, error) {
		return port, nil
	}))
	require.NoError(t, err)

	go func() {
		for i := 0; i < ParseErrorsThreshold; i++ {
			port.chunks <- "garbage\n"
		}
	}()

	err = src.Stream(context.Background(), make(chan motion.Event))
	assert.ErrorIs(t, err, ErrTooManyParseErrors)
}

func TestStreamOpenFailure(t *testing.T) {
	src, err := New(Config{Port: "/dev/missing"}, WithOpener(func(serial.OpenOptions) (io.ReadWriteCloser, error) {
		return nil, errors.New("no such device")
	}))
	require.NoError(t, err)

	err = src.Stream(context.Background(), make(chan motion.Event))
	assert.ErrorIs(t, err, motion.ErrUnavailable)
}

func TestNewRequiresPort(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
