package keystroke

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultDescriptorPath lists the input devices known to the kernel.
const DefaultDescriptorPath = "/proc/bus/input/devices"

// ErrDeviceNotFound means no input device matched the reader marker.
var ErrDeviceNotFound = errors.New("keystroke: card reader not connected")

// FindDevice scans a device listing in /proc/bus/input/devices format for
// the first block containing marker and returns the event node named on
// its handler line, e.g. /dev/input/event5.
func FindDevice(r io.Reader, marker string) (string, error) {
	scanner := bufio.NewScanner(r)

	var matched bool
	var handler string

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line = end of device block
		if strings.TrimSpace(line) == "" {
			if matched && handler != "" {
				return "/dev/input/" + handler, nil
			}
			matched, handler = false, ""
			continue
		}

		if strings.Contains(line, marker) {
			matched = true
		}

		// H: Handlers=sysrq kbd leds event5
		if rest, ok := strings.CutPrefix(line, "H: Handlers="); ok {
			for _, part := range strings.Fields(rest) {
				if strings.HasPrefix(part, "event") && len(part) > len("event") {
					handler = part
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read device list: %w", err)
	}

	// Don't forget last device if file doesn't end with newline
	if matched && handler != "" {
		return "/dev/input/" + handler, nil
	}
	return "", ErrDeviceNotFound
}

// Discover opens the device listing at path and looks up marker in it.
// Failure to read the listing is reported as is; a missing reader is
// ErrDeviceNotFound.
func Discover(path, marker string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open device list: %w", err)
	}
	defer f.Close()
	return FindDevice(f, marker)
}
