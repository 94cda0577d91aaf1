package com

import (
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/ftl/ril-cbs/ril"
)

// NewInMemory returns a device that plays the part of the RIL daemon in tests.
func NewInMemory() *InMemory {
	result := &InMemory{
		written: make(chan struct{}, 64),
		closed:  make(chan struct{}),
	}
	result.readable = sync.NewCond(&result.mu)
	return result
}

// InMemory is an io.ReadWriteCloser: bytes prepared with the Prepare* methods are read by the
// Channel, bytes written by the Channel can be inspected with Written and Requests.
type InMemory struct {
	mu          sync.Mutex
	readable    *sync.Cond
	readBuffer  []byte
	writeBuffer []byte
	isClosed    bool

	written chan struct{}
	closed  chan struct{}
}

func (rw *InMemory) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.isClosed {
		return nil
	}
	rw.isClosed = true
	close(rw.closed)
	rw.readable.Broadcast()
	return nil
}

func (rw *InMemory) WaitUntilClosed() {
	<-rw.closed
}

func (rw *InMemory) Read(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	for len(rw.readBuffer) == 0 && !rw.isClosed {
		rw.readable.Wait()
	}
	if rw.isClosed {
		return 0, io.EOF
	}

	n := copy(p, rw.readBuffer)
	rw.readBuffer = rw.readBuffer[n:]
	return n, nil
}

// PrepareRead makes raw bytes available for reading.
func (rw *InMemory) PrepareRead(p []byte) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	rw.readBuffer = append(rw.readBuffer, p...)
	rw.readable.Broadcast()
}

// PrepareFrame makes the given parcel available as one length prefixed frame.
func (rw *InMemory) PrepareFrame(parcel []byte) {
	frame := binary.BigEndian.AppendUint32(nil, uint32(len(parcel)))
	rw.PrepareRead(append(frame, parcel...))
}

// PrepareResponse makes a solicited response for the given serial available.
func (rw *InMemory) PrepareResponse(serial uint32, status ril.Status, data []byte) {
	parcel := binary.LittleEndian.AppendUint32(nil, responseSolicited)
	parcel = binary.LittleEndian.AppendUint32(parcel, serial)
	parcel = binary.LittleEndian.AppendUint32(parcel, uint32(status))
	rw.PrepareFrame(append(parcel, data...))
}

// PrepareEvent makes an unsolicited event available.
func (rw *InMemory) PrepareEvent(code ril.UnsolCode, data []byte) {
	parcel := binary.LittleEndian.AppendUint32(nil, responseUnsolicited)
	parcel = binary.LittleEndian.AppendUint32(parcel, uint32(code))
	rw.PrepareFrame(append(parcel, data...))
}

func (rw *InMemory) IsReadEmpty() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	return len(rw.readBuffer) == 0
}

func (rw *InMemory) Write(p []byte) (int, error) {
	rw.mu.Lock()
	if rw.isClosed {
		rw.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	rw.writeBuffer = append(rw.writeBuffer, p...)
	rw.mu.Unlock()

	select {
	case rw.written <- struct{}{}:
	default:
	}
	return len(p), nil
}

// Written returns a copy of all bytes written so far.
func (rw *InMemory) Written() []byte {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	return append([]byte(nil), rw.writeBuffer...)
}

func (rw *InMemory) ClearWrite() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	rw.writeBuffer = nil
}

// WaitUntilWritten blocks until the next Write or until the timeout elapses.
// It returns false on timeout.
func (rw *InMemory) WaitUntilWritten(timeout time.Duration) bool {
	select {
	case <-rw.written:
		return true
	case <-time.After(timeout):
		return false
	}
}

// WrittenRequest is a request frame as written by a Channel.
type WrittenRequest struct {
	Code    ril.RequestCode
	Serial  uint32
	Payload []byte
}

// Requests decodes all complete request frames written so far.
func (rw *InMemory) Requests() []WrittenRequest {
	data := rw.Written()
	var result []WrittenRequest
	for len(data) >= LengthPrefixSize {
		length := int(binary.BigEndian.Uint32(data))
		if length < headerSize || len(data) < LengthPrefixSize+length {
			break
		}
		frame := data[LengthPrefixSize : LengthPrefixSize+length]
		result = append(result, WrittenRequest{
			Code:    ril.RequestCode(binary.LittleEndian.Uint32(frame[0:])),
			Serial:  binary.LittleEndian.Uint32(frame[4:]),
			Payload: frame[headerSize:],
		})
		data = data[LengthPrefixSize+length:]
	}
	return result
}

// WaitForRequests blocks until at least n request frames have been written or the timeout elapses.
func (rw *InMemory) WaitForRequests(n int, timeout time.Duration) []WrittenRequest {
	deadline := time.Now().Add(timeout)
	for {
		requests := rw.Requests()
		if len(requests) >= n {
			return requests
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return requests
		}
		rw.WaitUntilWritten(remaining)
	}
}
