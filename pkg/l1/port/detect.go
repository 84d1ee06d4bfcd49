package port

import (
	"errors"
	"sort"
	"strings"

	"go.bug.st/serial"
)

// ErrNoPort indicates no serial port could be detected.
var ErrNoPort = errors.New("no serial port found")

// preferred name fragments of USB CDC devices, e.g. picoprobe.
var preferred = []string{"usbmodem", "ttyACM", "ttyUSB"}

// List enumerates serial ports on the host.
func List() ([]string, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Detect picks the first USB serial port on the host.
func Detect() (string, error) {
	names, err := List()
	if err != nil {
		return "", err
	}
	return pick(names)
}

func pick(names []string) (string, error) {
	for _, frag := range preferred {
		for _, name := range names {
			// on macOS prefer the call-out device
			if strings.Contains(name, frag) && !strings.HasPrefix(name, "/dev/tty.") {
				return name, nil
			}
		}
		for _, name := range names {
			if strings.Contains(name, frag) {
				return name, nil
			}
		}
	}
	return "", ErrNoPort
}
