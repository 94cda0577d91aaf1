package cbs

import (
	"time"

	"github.com/ftl/ril-cbs/ril"
)

// The retry cadence of all cell broadcast requests
const (
	RetryInterval = 1000 * time.Millisecond
	RetryCount    = 30
)

// Retry reports whether a request should be sent again. Only RIL_E_INVALID_STATE is transient,
// every other status is terminal.
func Retry(status ril.Status, _ []byte) bool {
	return status == ril.StatusInvalidState
}

func withRetry(req *ril.Request) *ril.Request {
	req.SetRetryFunc(Retry)
	req.SetRetry(RetryInterval, RetryCount)
	return req
}
