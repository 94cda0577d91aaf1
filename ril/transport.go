package ril

// ResponseFunc receives the final status and payload of a request.
type ResponseFunc func(status Status, data []byte)

// DestroyFunc is called exactly once when a request is dropped by its queue,
// after the ResponseFunc if there was a response.
type DestroyFunc func()

// UnsolHandler receives the payload of an unsolicited event.
type UnsolHandler func(code UnsolCode, data []byte)

// RequestID identifies a request sent through a Queue. The zero value is never used.
type RequestID uint32

// HandlerID identifies an unsolicited event handler. The zero value is never used.
type HandlerID uint64

// Task is a deferred one-shot function scheduled on a Channel's event loop.
type Task interface {
	// Cancel prevents the task from running. It returns false if the task already ran.
	Cancel() bool
}

// Queue serializes requests sent through one Channel.
type Queue interface {
	Send(request *Request, code RequestCode, response ResponseFunc, destroy DestroyFunc) RequestID
	// CancelAll drops all outstanding requests of this queue. If notify is false,
	// the response functions are not called, only the destroy functions.
	CancelAll(notify bool)
}

// Channel is a shared connection to the RIL daemon of one modem.
type Channel interface {
	Ref()
	Unref()
	NewQueue() Queue
	AddUnsolHandler(code UnsolCode, handler UnsolHandler) HandlerID
	RemoveHandler(id HandlerID)
	// Idle schedules fn to run once on the next iteration of the event loop.
	Idle(fn func()) Task
}
