package serial

import (
	"errors"
	"io"
	"net"

	"github.com/jacobsa/go-serial/serial"

	"github.com/ftl/ril-cbs/com"
)

var (
	ErrNoModemFound = errors.New("no modem device found")
)

// DefaultSocket is the usual address of the RIL daemon's socket.
const DefaultSocket = "/dev/socket/rild"

// Open a RIL channel on the given serial port.
func Open(portName string, config com.Config) (*com.Channel, error) {
	device, err := openSerial(portName)
	if err != nil {
		return nil, err
	}

	return com.New(device, config), nil
}

// OpenWithTrace opens a RIL channel on the given serial port that traces all frames to tracer.
func OpenWithTrace(portName string, tracer io.Writer, config com.Config) (*com.Channel, error) {
	device, err := openSerial(portName)
	if err != nil {
		return nil, err
	}

	return com.NewWithTrace(device, tracer, config), nil
}

// Dial opens a RIL channel on a socket, usually the unix socket of the RIL daemon.
// A nil tracer disables tracing.
func Dial(network, address string, tracer io.Writer, config com.Config) (*com.Channel, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}
	if tracer == nil {
		return com.New(conn, config), nil
	}
	return com.NewWithTrace(conn, tracer, config), nil
}

func openSerial(portName string) (io.ReadWriteCloser, error) {
	portConfig := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              115200,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		RTSCTSFlowControl:     true,
		MinimumReadSize:       4,
		InterCharacterTimeout: 100,
	}

	return serial.Open(portConfig)
}
