package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type BroadcastMode int

const (
	BroadcastModeSync BroadcastMode = iota
	BroadcastModeBlock
)

func BroadcastModeFromString(s string) (BroadcastMode, error) {
	switch strings.ToLower(s) {
	case "", "sync":
		return BroadcastModeSync, nil
	case "block":
		return BroadcastModeBlock, nil
	default:
		return BroadcastModeSync, fmt.Errorf("invalid BroadcastMode: %s", s)
	}
}

func (m *BroadcastMode) UnmarshalText(text []byte) error {
	mode, err := BroadcastModeFromString(string(text))
	if err != nil {
		return err
	}
	*m = mode

	return nil
}

func (m BroadcastMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m BroadcastMode) String() string {
	if m == BroadcastModeBlock {
		return "block"
	}
	return "sync"
}

// wireName is the enum value the tx service expects in a broadcast body.
func (m BroadcastMode) wireName() string {
	if m == BroadcastModeBlock {
		return "BROADCAST_MODE_BLOCK"
	}
	return "BROADCAST_MODE_SYNC"
}

const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultReadRetryMax   = 4
	DefaultRetryWaitMin   = 500 * time.Millisecond
	DefaultRetryWaitMax   = 5 * time.Second
)

// LCDConfig configures an LCDClient.
// Reads (account, simulate, tx lookup) are retried up to ReadRetryMax times;
// broadcasts are never retried.
type LCDConfig struct {
	URL            string
	BroadcastMode  BroadcastMode
	RequestTimeout time.Duration
	ReadRetryMax   int
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
}

func DefaultLCDConfig(url string) LCDConfig {
	return LCDConfig{
		URL:            url,
		BroadcastMode:  BroadcastModeSync,
		RequestTimeout: DefaultRequestTimeout,
		ReadRetryMax:   DefaultReadRetryMax,
		RetryWaitMin:   DefaultRetryWaitMin,
		RetryWaitMax:   DefaultRetryWaitMax,
	}
}

func (c LCDConfig) Validate() error {
	if c.URL == "" {
		return errors.New("LCD url must be set")
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("LCD url %q must use http or https", c.URL)
	}
	if c.ReadRetryMax < 0 {
		return errors.New("read retry max cannot be negative")
	}
	return nil
}
