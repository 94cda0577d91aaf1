//go:build linux

package serial

import (
	"strings"

	"github.com/hedhyw/Go-Serial-Detector/pkg/v1/serialdet"
)

// FindModemPortName returns the path of the first serial device whose description contains marker.
func FindModemPortName(marker string) (string, error) {
	devices, err := serialdet.List()
	if err != nil {
		return "", err
	}

	marker = strings.ToLower(marker)
	for _, device := range devices {
		description := strings.ToLower(device.Description())
		if strings.Contains(description, marker) {
			return device.Path(), nil
		}
	}

	return "", ErrNoModemFound
}
