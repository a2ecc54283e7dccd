package iw

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roman-kulish/wifi-heatmap/internal/wifi"
)

type bss struct {
	network  wifi.Network
	section  string
	security []string
}

func (b *bss) finish() wifi.Network {
	n := b.network
	if len(b.security) > 0 {
		n.Capabilities = strings.TrimSpace(strings.Join(b.security, " ") + " " + n.Capabilities)
	}
	if n.ChannelWidth == 0 && n.Frequency > 0 {
		n.ChannelWidth = 20
	}

	return n
}

// Parse reads `iw dev <iface> scan dump` output. now anchors the relative "last seen"
// values.
func Parse(r io.Reader, now time.Time) ([]wifi.Network, error) {
	var (
		networks []wifi.Network
		current  *bss
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if line == "" {
			continue
		}

		if strings.HasPrefix(raw, "BSS ") {
			if current != nil {
				networks = append(networks, current.finish())
			}

			bssid, err := parseBSSID(raw)
			if err != nil {
				return nil, err
			}

			current = &bss{network: wifi.Network{BSSID: bssid, LastSeen: now}}
			continue
		}

		if current == nil {
			continue // header noise before the first BSS
		}

		if err := current.parseLine(raw, line, now); err != nil {
			return nil, fmt.Errorf("BSS %s: %w", current.network.BSSID, err)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		return nil, fmt.Errorf("reading scan dump: %w", err)
	}

	if current != nil {
		networks = append(networks, current.finish())
	}

	return networks, nil
}

func parseBSSID(line string) (string, error) {
	rest := strings.TrimPrefix(line, "BSS ")
	if i := strings.IndexAny(rest, "( "); i >= 0 {
		rest = rest[:i]
	}

	if len(rest) != 17 || strings.Count(rest, ":") != 5 {
		return "", fmt.Errorf("invalid BSS line: %q", line)
	}

	return strings.ToLower(rest), nil
}

func (b *bss) parseLine(raw, line string, now time.Time) error {
	nested := strings.HasPrefix(line, "* ")

	// a top-level key resets the current section
	if !nested && strings.HasPrefix(raw, "\t") && !strings.HasPrefix(raw, "\t\t") {
		b.section = ""
	}

	key, value, found := strings.Cut(strings.TrimPrefix(line, "* "), ":")
	if !found {
		return nil
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	if !nested && (key == "RSN" || key == "WPA") {
		b.security = append(b.security, key)
		b.section = key
		return nil
	}

	if !nested && value == "" {
		b.section = key
		return nil
	}

	if nested {
		return b.parseSectionItem(key, value)
	}

	switch key {
	case "freq":
		freq, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid frequency: %w", err)
		}
		b.network.Frequency = int(freq)

	case "signal":
		level, err := strconv.ParseFloat(strings.TrimSuffix(value, " dBm"), 64)
		if err != nil {
			return fmt.Errorf("invalid signal: %w", err)
		}
		b.network.Level = int(math.Round(level))

	case "SSID":
		b.network.SSID = value

	case "capability":
		if i := strings.Index(value, "(0x"); i >= 0 {
			value = strings.TrimSpace(value[:i])
		}
		b.network.Capabilities = value

	case "last seen":
		if !strings.HasSuffix(value, " ms ago") {
			return nil // boottime variant
		}
		ms, err := strconv.Atoi(strings.TrimSuffix(value, " ms ago"))
		if err != nil {
			return fmt.Errorf("invalid last seen: %w", err)
		}
		b.network.LastSeen = now.Add(-time.Duration(ms) * time.Millisecond)
	}

	return nil
}

func (b *bss) parseSectionItem(key, value string) error {
	switch b.section {
	case "HT operation":
		if key == "secondary channel offset" && (value == "above" || value == "below") && b.network.ChannelWidth < 40 {
			b.network.ChannelWidth = 40
		}

	case "VHT operation":
		switch key {
		case "channel width":
			// "1 (80 MHz)"
			open, closing := strings.Index(value, "("), strings.Index(value, " MHz)")
			if open < 0 || closing < open {
				return nil
			}
			if mhz, err := strconv.Atoi(value[open+1 : closing]); err == nil && mhz > b.network.ChannelWidth {
				b.network.ChannelWidth = mhz
			}

		case "center freq segment 1", "center freq segment 2":
			idx, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			if idx == 0 {
				return nil
			}
			if key == "center freq segment 1" {
				b.network.CenterFreq0 = 5000 + 5*idx
			} else {
				b.network.CenterFreq1 = 5000 + 5*idx
			}
		}
	}

	return nil
}
