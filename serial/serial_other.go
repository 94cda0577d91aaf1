//go:build !linux

package serial

func FindModemPortName(marker string) (string, error) {
	// no-op for other OSes
	return "", ErrNoModemFound
}
