// Package wifi models access points and reads the signal strength of one target network
// from a radio scanner.
package wifi

import (
	"context"
	"strings"
	"time"
)

// Scanner is the radio collaborator. TriggerScan requests a fresh scan and returns
// immediately; CurrentResults returns whatever the radio has cached, which may predate
// the triggered scan.
type Scanner interface {
	TriggerScan(ctx context.Context) bool
	CurrentResults(ctx context.Context) ([]Network, error)
}

// Reading is the signal strength of the target network at one moment.
type Reading struct {
	BSSID    string
	SSID     string
	Strength int // dBm
	Time     time.Time
}

// Find returns the network with the given BSSID. MAC addresses compare case-insensitively.
func Find(networks []Network, bssid string) (Network, bool) {
	for _, n := range networks {
		if strings.EqualFold(n.BSSID, bssid) {
			return n, true
		}
	}

	return Network{}, false
}
