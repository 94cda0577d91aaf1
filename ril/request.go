package ril

import (
	"encoding/binary"
	"time"
)

// RetryFunc decides whether a request that completed with the given status should be sent again.
type RetryFunc func(status Status, data []byte) bool

// Request is the binary payload of a RIL request together with its retry policy.
// Integers are written in parcel byte order (little endian).
type Request struct {
	data          []byte
	retry         RetryFunc
	retryInterval time.Duration
	maxRetries    int
}

// NewRequest returns an empty request without retries.
func NewRequest() *Request {
	return &Request{}
}

// NewSizedRequest returns an empty request with room for size bytes of payload.
func NewSizedRequest(size int) *Request {
	return &Request{data: make([]byte, 0, size)}
}

func (r *Request) AppendInt32(value int32) {
	r.data = binary.LittleEndian.AppendUint32(r.data, uint32(value))
}

func (r *Request) AppendUint32(value uint32) {
	r.data = binary.LittleEndian.AppendUint32(r.data, value)
}

func (r *Request) AppendBytes(data []byte) {
	r.data = append(r.data, data...)
}

// Bytes returns the encoded payload.
func (r *Request) Bytes() []byte {
	return r.data
}

func (r *Request) Len() int {
	return len(r.data)
}

// SetRetryFunc sets the predicate that classifies a response as retryable.
func (r *Request) SetRetryFunc(retry RetryFunc) {
	r.retry = retry
}

// SetRetry configures the retry cadence. A negative maxRetries retries forever.
func (r *Request) SetRetry(interval time.Duration, maxRetries int) {
	r.retryInterval = interval
	r.maxRetries = maxRetries
}

func (r *Request) RetryFunc() RetryFunc {
	return r.retry
}

func (r *Request) RetryInterval() time.Duration {
	return r.retryInterval
}

func (r *Request) MaxRetries() int {
	return r.maxRetries
}

// ShouldRetry reports whether a response with the given status and payload should be resent,
// given the number of retries already done.
func (r *Request) ShouldRetry(status Status, data []byte, retries int) bool {
	if r.retry == nil {
		return false
	}
	if r.maxRetries >= 0 && retries >= r.maxRetries {
		return false
	}
	return r.retry(status, data)
}
