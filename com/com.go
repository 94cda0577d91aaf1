package com

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ftl/ril-cbs/ril"
)

const (
	// LengthPrefixSize is the size of the frame length prefix in bytes.
	LengthPrefixSize = 4
	// DefaultMaxFrameSize applies if Config.MaxFrameSize is zero.
	DefaultMaxFrameSize = 64 * 1024

	headerSize = 8
)

// Types of inbound parcels
const (
	responseSolicited         = 0
	responseUnsolicited       = 1
	responseSolicitedAck      = 2
	responseSolicitedAckExp   = 3
	responseUnsolicitedAckExp = 4
)

var (
	ErrFrameEmpty    = errors.New("frame is empty")
	ErrFrameTooLarge = errors.New("frame too large")
)

// Config of a Channel. The zero value is usable.
type Config struct {
	// Logger receives debug output. Nil disables logging.
	Logger *zerolog.Logger
	// MaxFrameSize limits the size of inbound frames.
	MaxFrameSize int
}

// Channel is a connection to the RIL daemon of one modem. All callbacks (responses,
// unsolicited event handlers, idle tasks) run on the channel's event loop goroutine.
type Channel struct {
	device io.ReadWriter
	tracer io.Writer
	log    zerolog.Logger

	refs      atomic.Int32
	closeOnce sync.Once
	quit      chan struct{}
	closed    chan struct{}

	mu          sync.Mutex
	down        bool
	posted      []func()
	wake        chan struct{}
	handlers    map[ril.HandlerID]unsolHandler
	pending     map[uint32]*request
	outstanding map[*request]struct{}

	lastSerial  atomic.Uint32
	lastHandler atomic.Uint64
}

type unsolHandler struct {
	code    ril.UnsolCode
	handler ril.UnsolHandler
}

// NewWithTrace creates a new Channel that traces all frames to a second writer.
func NewWithTrace(device io.ReadWriter, tracer io.Writer, config Config) *Channel {
	return start(device, tracer, config)
}

// New creates a new Channel that talks to the RIL daemon through the given device.
// The returned channel holds one reference.
func New(device io.ReadWriter, config Config) *Channel {
	return start(device, nil, config)
}

func start(device io.ReadWriter, tracer io.Writer, config Config) *Channel {
	result := &Channel{
		device:      device,
		tracer:      tracer,
		log:         zerolog.Nop(),
		quit:        make(chan struct{}),
		closed:      make(chan struct{}),
		wake:        make(chan struct{}, 1),
		handlers:    make(map[ril.HandlerID]unsolHandler),
		pending:     make(map[uint32]*request),
		outstanding: make(map[*request]struct{}),
	}
	if config.Logger != nil {
		result.log = *config.Logger
	}
	maxFrameSize := config.MaxFrameSize
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	result.refs.Store(1)

	frames := readLoop(device, maxFrameSize, result.log, result.quit)
	go result.run(frames)

	return result
}

func (c *Channel) run(frames <-chan []byte) {
	defer close(c.closed)
	c.trace("****\n* SESSION START\n****\n")
	defer c.trace("****\n* SESSION END\n****\n")
	defer c.shutdown()

	for {
		select {
		case frame, valid := <-frames:
			if !valid {
				c.log.Debug().Msg("RIL connection closed")
				return
			}
			c.tracef("rx:  %X\n--\n", frame)
			c.dispatch(frame)
		case <-c.wake:
			c.runPosted()
		case <-c.quit:
			return
		}
	}
}

// shutdown fails all requests that are still outstanding when the loop ends.
func (c *Channel) shutdown() {
	c.mu.Lock()
	c.down = true
	c.mu.Unlock()

	c.runPosted()

	c.mu.Lock()
	requests := make([]*request, 0, len(c.outstanding))
	for req := range c.outstanding {
		requests = append(requests, req)
	}
	c.mu.Unlock()

	for _, req := range requests {
		req.finish(ril.StatusRadioNotAvailable, nil, true)
	}
}

func (c *Channel) runPosted() {
	for {
		c.mu.Lock()
		posted := c.posted
		c.posted = nil
		c.mu.Unlock()

		if len(posted) == 0 {
			return
		}
		for _, fn := range posted {
			fn()
		}
	}
}

// Post queues fn to run on the event loop. Functions run in the order they were posted.
// Functions posted after the channel closed never run.
func (c *Channel) Post(fn func()) {
	c.mu.Lock()
	c.posted = append(c.posted, fn)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Idle schedules fn to run once on the next iteration of the event loop.
func (c *Channel) Idle(fn func()) ril.Task {
	result := &idleTask{}
	c.Post(func() {
		if result.state.CompareAndSwap(taskPending, taskFired) {
			fn()
		}
	})
	return result
}

const (
	taskPending int32 = iota
	taskFired
	taskCancelled
)

type idleTask struct {
	state atomic.Int32
}

func (t *idleTask) Cancel() bool {
	return t.state.CompareAndSwap(taskPending, taskCancelled)
}

// Ref adds a reference to the channel.
func (c *Channel) Ref() {
	c.refs.Add(1)
}

// Unref drops a reference. The last reference closes the channel.
func (c *Channel) Unref() {
	if c.refs.Add(-1) == 0 {
		c.Close()
	}
}

// Close stops the event loop and closes the device if it is an io.Closer.
// Outstanding requests complete with ril.StatusRadioNotAvailable.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		if closer, ok := c.device.(io.Closer); ok {
			closer.Close()
		}
	})
}

func (c *Channel) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// WaitUntilClosed blocks until the event loop has ended.
func (c *Channel) WaitUntilClosed() {
	<-c.closed
}

func (c *Channel) AddUnsolHandler(code ril.UnsolCode, handler ril.UnsolHandler) ril.HandlerID {
	id := ril.HandlerID(c.lastHandler.Add(1))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[id] = unsolHandler{code: code, handler: handler}
	return id
}

// RemoveHandler removes the handler with the given id. Unknown ids and the zero id are ignored.
func (c *Channel) RemoveHandler(id ril.HandlerID) {
	if id == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, id)
}

// NewQueue returns a new private request queue bound to this channel.
func (c *Channel) NewQueue() ril.Queue {
	return &Queue{
		channel:  c,
		requests: make(map[ril.RequestID]*request),
	}
}

func (c *Channel) nextSerial() uint32 {
	for {
		serial := c.lastSerial.Add(1)
		if serial != 0 {
			return serial
		}
	}
}

// submit writes the request frame with a fresh serial. It runs on the event loop.
func (c *Channel) submit(req *request) {
	serial := c.nextSerial()

	c.mu.Lock()
	if req.dropped || c.down {
		c.mu.Unlock()
		return
	}
	req.serial = serial
	c.pending[serial] = req
	c.mu.Unlock()

	err := c.writeFrame(req.code, serial, req.payload.Bytes())
	if err != nil {
		c.log.Debug().Err(err).Stringer("code", req.code).Uint32("serial", serial).Msg("cannot send RIL request")
		req.finish(ril.StatusGenericFailure, nil, true)
	}
}

func (c *Channel) writeFrame(code ril.RequestCode, serial uint32, payload []byte) error {
	frame := make([]byte, LengthPrefixSize+headerSize, LengthPrefixSize+headerSize+len(payload))
	binary.BigEndian.PutUint32(frame[0:], uint32(headerSize+len(payload)))
	binary.LittleEndian.PutUint32(frame[4:], uint32(code))
	binary.LittleEndian.PutUint32(frame[8:], serial)
	frame = append(frame, payload...)

	c.tracef("tx:  %s serial=%d\nhex: %X\n--\n", code, serial, frame)
	c.log.Debug().Stringer("code", code).Uint32("serial", serial).Int("len", len(payload)).Msg("RIL request")
	_, err := c.device.Write(frame)
	return err
}

func (c *Channel) dispatch(frame []byte) {
	parser := ril.NewParser(frame)
	kind, ok := parser.GetUint32()
	if !ok {
		c.log.Debug().Int("len", len(frame)).Msg("RIL frame without type")
		return
	}

	switch kind {
	case responseSolicited, responseSolicitedAckExp:
		serial, ok1 := parser.GetUint32()
		status, ok2 := parser.GetInt32()
		if !ok1 || !ok2 {
			c.log.Debug().Int("len", len(frame)).Msg("truncated RIL response")
			return
		}
		c.handleResponse(serial, ril.Status(status), parser.Rest())
	case responseUnsolicited, responseUnsolicitedAckExp:
		code, ok := parser.GetUint32()
		if !ok {
			c.log.Debug().Int("len", len(frame)).Msg("truncated RIL event")
			return
		}
		c.handleEvent(ril.UnsolCode(code), parser.Rest())
	case responseSolicitedAck:
		// the actual response follows later
	default:
		c.log.Debug().Uint32("type", kind).Msg("unexpected RIL packet type")
	}
}

func (c *Channel) handleResponse(serial uint32, status ril.Status, data []byte) {
	c.mu.Lock()
	req, ok := c.pending[serial]
	if ok {
		delete(c.pending, serial)
		req.serial = 0
	}
	c.mu.Unlock()

	if !ok {
		c.log.Debug().Uint32("serial", serial).Stringer("status", status).Msg("unexpected RIL response")
		return
	}
	c.log.Debug().Stringer("code", req.code).Uint32("serial", serial).Stringer("status", status).Msg("RIL response")

	if req.payload.ShouldRetry(status, data, req.retries) {
		req.retries++
		c.log.Debug().Stringer("code", req.code).Int("retry", req.retries).Msg("retrying RIL request")
		time.AfterFunc(req.payload.RetryInterval(), func() {
			c.Post(func() {
				c.submit(req)
			})
		})
		return
	}

	req.finish(status, data, true)
}

func (c *Channel) handleEvent(code ril.UnsolCode, data []byte) {
	c.mu.Lock()
	handlers := make([]ril.UnsolHandler, 0, len(c.handlers))
	for _, h := range c.handlers {
		if h.code == code {
			handlers = append(handlers, h.handler)
		}
	}
	c.mu.Unlock()

	c.log.Debug().Stringer("code", code).Int("len", len(data)).Int("handlers", len(handlers)).Msg("RIL event")
	for _, handler := range handlers {
		handler(code, data)
	}
}

func (c *Channel) trace(args ...interface{}) {
	if c.tracer == nil {
		return
	}
	fmt.Fprint(c.tracer, args...)
}

func (c *Channel) tracef(format string, args ...interface{}) {
	if c.tracer == nil {
		return
	}
	fmt.Fprintf(c.tracer, format, args...)
}

// readLoop reads length prefixed frames from r until r fails or a frame is invalid.
func readLoop(r io.Reader, maxFrameSize int, log zerolog.Logger, quit <-chan struct{}) <-chan []byte {
	frames := make(chan []byte, 1)
	go func() {
		defer close(frames)
		for {
			frame, err := readFrame(r, maxFrameSize)
			if err == io.EOF {
				return
			} else if err != nil {
				log.Debug().Err(err).Msg("cannot read RIL frame")
				return
			}
			select {
			case frames <- frame:
			case <-quit:
				return
			}
		}
	}()
	return frames
}

func readFrame(r io.Reader, maxFrameSize int) ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated length prefix: %w", err)
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length == 0 {
		return nil, ErrFrameEmpty
	}
	if length > uint32(maxFrameSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, maxFrameSize)
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, fmt.Errorf("truncated frame: %w", err)
	}
	return frame, nil
}

var _ ril.Channel = (*Channel)(nil)
