package devices

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// StatusLine toggles a GPIO line high while a governor is RUNNING and
// low otherwise, a supplemental client feature (SPEC_FULL.md §6
// client.gpio_status_line). Uses github.com/warthog618/go-gpiocdev, the
// character-device GPIO library carried as a real ecosystem dependency
// in the pack (doismellburning-samoyed's go.mod); that repo's own PTT
// keying goes through sysfs/serial lines directly rather than this
// library, so this is new code against go-gpiocdev's public API, not an
// adaptation of samoyed's PTT path.
type StatusLine struct {
	chip string
	line int
	req  *gpiocdev.Line
}

// NewStatusLine requests chip/line as an output, initially low.
func NewStatusLine(chip string, line int) (*StatusLine, error) {
	req, err := gpiocdev.RequestLine(chip, line, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("devices: request gpio line %s:%d: %w", chip, line, err)
	}
	return &StatusLine{chip: chip, line: line, req: req}, nil
}

// SetRunning drives the line high (running) or low (not running).
func (s *StatusLine) SetRunning(running bool) error {
	v := 0
	if running {
		v = 1
	}
	return s.req.SetValue(v)
}

// Close releases the line request, leaving it low.
func (s *StatusLine) Close() error {
	_ = s.req.SetValue(0)
	return s.req.Close()
}
