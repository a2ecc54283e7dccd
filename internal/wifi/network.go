package wifi

import (
	"cmp"
	"slices"
	"time"
)

const (
	ZoneHot  Zone = "hot"
	ZoneWarm Zone = "warm"
	ZoneFair Zone = "fair"
	ZoneCold Zone = "cold"

	Band24GHz Band = "2.4GHz"
	Band5GHz  Band = "5GHz"
	Band6GHz  Band = "6GHz"
)

// Zone is a coarse signal strength bucket used for colouring and labelling.
type Zone string

func (z Zone) String() string {
	return string(z)
}

// Band is the radio band a network operates on.
type Band string

func (b Band) String() string {
	return string(b)
}

// Network is a single access point as reported by a scan.
type Network struct {
	SSID         string    `json:"ssid"`
	BSSID        string    `json:"bssid"`
	Level        int       `json:"level"`     // dBm
	Frequency    int       `json:"frequency"` // MHz
	Capabilities string    `json:"capabilities"`
	LastSeen     time.Time `json:"lastSeen"`
	ChannelWidth int       `json:"channelWidth"` // MHz, 0 if unknown
	CenterFreq0  int       `json:"centerFreq0,omitempty"`
	CenterFreq1  int       `json:"centerFreq1,omitempty"`
}

// SignalQuality maps the level to 0..100: -100 dBm and below is 0, -50 dBm and above
// is 100, linear in between.
func (n Network) SignalQuality() int {
	return SignalQuality(n.Level)
}

func (n Network) Zone() Zone {
	return ZoneOf(n.Level)
}

// Channel derives the IEEE channel number from the frequency, 0 if unknown.
func (n Network) Channel() int {
	f := n.Frequency
	switch {
	case f == 2484:
		return 14
	case f >= 2412 && f < 2484:
		return (f - 2407) / 5
	case f >= 5955 && f <= 7115:
		return (f - 5950) / 5
	case f >= 5000 && f <= 5925:
		return (f - 5000) / 5
	default:
		return 0
	}
}

func (n Network) Band() Band {
	f := n.Frequency
	switch {
	case f >= 2400 && f < 2500:
		return Band24GHz
	case f >= 5955 && f <= 7125:
		return Band6GHz
	case f >= 4900 && f < 5955:
		return Band5GHz
	default:
		return ""
	}
}

// SignalQuality converts a level in dBm to a 0..100 score.
func SignalQuality(level int) int {
	switch {
	case level <= -100:
		return 0
	case level >= -50:
		return 100
	default:
		return 2 * (level + 100)
	}
}

// ZoneOf buckets a level in dBm.
func ZoneOf(level int) Zone {
	switch {
	case level >= -50:
		return ZoneHot
	case level >= -60:
		return ZoneWarm
	case level >= -70:
		return ZoneFair
	default:
		return ZoneCold
	}
}

// SortByLevel orders networks strongest first, ties broken by BSSID for stable output.
func SortByLevel(networks []Network) {
	slices.SortStableFunc(networks, func(a, b Network) int {
		if c := cmp.Compare(b.Level, a.Level); c != 0 {
			return c
		}
		return cmp.Compare(a.BSSID, b.BSSID)
	})
}
