package motion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/geo/r3"
)

func TestParseLine(t *testing.T) {
	now := time.Unix(1000, 0)

	tests := []struct {
		line string
		want Event
	}{
		{"A,0.1,-0.2,9.81", Event{Kind: KindAccelerometer, Vector: r3.Vector{X: 0.1, Y: -0.2, Z: 9.81}, Time: now}},
		{"m, 12, 22.5, -40 \r\n", Event{Kind: KindMagnetometer, Vector: r3.Vector{X: 12, Y: 22.5, Z: -40}, Time: now}},
		{"S", Event{Kind: KindStep, Time: now}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseLine(tt.line, now)
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLine() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		unknown bool
	}{
		{"unknown kind", "G,1,2,3", true},
		{"empty", "", true},
		{"missing axis", "A,1,2", false},
		{"bad number", "M,1,x,3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line, time.Now())
			if err == nil {
				t.Fatal("ParseLine() expected an error")
			}
			if got := errors.Is(err, ErrUnknownKind); got != tt.unknown {
				t.Errorf("errors.Is(err, ErrUnknownKind) = %v, want %v", got, tt.unknown)
			}
		})
	}
}

func TestSendHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if Send(ctx, make(chan Event), Event{Kind: KindStep}) {
		t.Error("Send() delivered on a cancelled context with no reader")
	}
}
