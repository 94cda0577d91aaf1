package cbs

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ftl/ril-cbs/ril"
)

// ErrFailed is reported for every request that did not complete successfully.
var ErrFailed = errors.New("cell broadcast request failed")

// Callback receives the result of an asynchronous adapter operation. A nil error means success.
type Callback func(err error)

// Service is the upper layer that consumes the cell broadcast service.
type Service interface {
	// Register announces that the cell broadcast service is ready.
	Register()
	// Notify delivers the PDU of an incoming cell broadcast.
	Notify(pdu []byte)
}

type Config struct {
	// LogPrefix identifies the modem in log messages, e.g. "[ril_0]".
	LogPrefix string
	// Logger receives debug output. Nil disables logging.
	Logger *zerolog.Logger
	// StrictTopicRanges parses each topic range on its own instead of the legacy behaviour of ParseTopics.
	StrictTopicRanges bool
}

// Adapter binds the cell broadcast service of one modem to its RIL channel.
// The adapter subscribes to incoming broadcasts and announces itself to the Service on the
// next iteration of the channel's event loop after New.
type Adapter struct {
	channel   ril.Channel
	queue     ril.Queue
	service   Service
	log       zerolog.Logger
	logPrefix string
	parse     func(string) []TopicRange

	mu           sync.Mutex
	registerTask ril.Task
	eventID      ril.HandlerID
	removed      bool
	pending      map[*operation]struct{}
}

// operation is the context of one outstanding SetTopics, ClearTopics or SetActivation call.
type operation struct {
	adapter  *Adapter
	callback Callback
}

// New creates the adapter and takes a reference on the channel. Call Remove to release it.
func New(channel ril.Channel, service Service, config Config) *Adapter {
	result := &Adapter{
		channel: channel,
		service: service,
		log:     zerolog.Nop(),
		parse:   ParseTopics,
		pending: make(map[*operation]struct{}),
	}
	if config.Logger != nil {
		result.log = *config.Logger
	}
	if config.LogPrefix != "" {
		result.logPrefix = config.LogPrefix + " "
	}
	if config.StrictTopicRanges {
		result.parse = ParseTopicsStrict
	}

	result.debugf("")
	channel.Ref()
	result.queue = channel.NewQueue()

	result.mu.Lock()
	defer result.mu.Unlock()
	result.registerTask = channel.Idle(result.register)

	return result
}

func (a *Adapter) register() {
	a.mu.Lock()
	if a.removed {
		a.mu.Unlock()
		return
	}
	a.debugf("registering for CB")
	a.registerTask = nil
	a.eventID = a.channel.AddUnsolHandler(ril.UnsolResponseNewBroadcastSMS, a.notify)
	a.mu.Unlock()

	a.service.Register()
}

// Registered reports whether the adapter is subscribed to incoming broadcasts.
func (a *Adapter) Registered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eventID != 0
}

// Pending returns the number of outstanding operations.
func (a *Adapter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Remove tears the adapter down. A registration that did not happen yet is cancelled, and
// outstanding operations are dropped without calling their callbacks.
func (a *Adapter) Remove() {
	a.mu.Lock()
	if a.removed {
		a.mu.Unlock()
		return
	}
	a.debugf("")
	a.removed = true
	if a.registerTask != nil {
		a.registerTask.Cancel()
		a.registerTask = nil
	}
	eventID := a.eventID
	a.eventID = 0
	a.mu.Unlock()

	if eventID != 0 {
		a.channel.RemoveHandler(eventID)
	}
	a.queue.CancelAll(false)
	a.channel.Unref()
}

func (a *Adapter) isRemoved() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.removed
}

// SetTopics configures the modem to receive the given comma separated topics and topic ranges.
func (a *Adapter) SetTopics(topics string, callback Callback) {
	a.debugf("%s", topics)
	a.setConfig(topics, callback)
}

// ClearTopics deactivates the reception of cell broadcasts.
func (a *Adapter) ClearTopics(callback Callback) {
	a.debugf("")
	a.requestActivation(false, callback)
}

// SetActivation activates or deactivates the reception of cell broadcasts.
func (a *Adapter) SetActivation(active bool, callback Callback) {
	a.requestActivation(active, callback)
}

func (a *Adapter) requestActivation(active bool, callback Callback) {
	req := ActivationRequest(active)
	if active {
		a.debugf("activating CB")
	} else {
		a.debugf("deactivating CB")
	}
	a.send(req, ril.RequestGSMSMSBroadcastActivation, callback)
}

func (a *Adapter) setConfig(topics string, callback Callback) {
	req := EncodeConfig(a.parse(topics))
	a.debugf("configuring CB")
	a.send(req, ril.RequestGSMSetBroadcastSMSConfig, callback)
}

func (a *Adapter) send(req *ril.Request, code ril.RequestCode, callback Callback) {
	op := &operation{adapter: a, callback: callback}

	a.mu.Lock()
	if a.removed {
		a.mu.Unlock()
		if callback != nil {
			callback(ErrFailed)
		}
		return
	}
	a.pending[op] = struct{}{}
	a.mu.Unlock()

	a.queue.Send(req, code, op.complete, op.release)

	if a.isRemoved() {
		// Remove ran while the request was being queued
		a.queue.CancelAll(false)
	}
}

func (o *operation) complete(status ril.Status, _ []byte) {
	if o.callback == nil || o.adapter.isRemoved() {
		return
	}
	if status.OK() {
		o.callback(nil)
	} else {
		o.callback(ErrFailed)
	}
}

func (o *operation) release() {
	a := o.adapter
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, o)
}

func (a *Adapter) notify(_ ril.UnsolCode, data []byte) {
	if a.isRemoved() {
		return
	}
	pdu, ok := DecodeBroadcast(data)
	if !ok {
		a.debugf("broadcast too short: %d bytes", len(data))
		return
	}
	a.debugf("%d bytes", len(pdu))
	a.service.Notify(pdu)
}

func (a *Adapter) debugf(format string, args ...any) {
	a.log.Debug().Msgf("%s"+format, append([]any{a.logPrefix}, args...)...)
}
