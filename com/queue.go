package com

import (
	"sync/atomic"

	"github.com/ftl/ril-cbs/ril"
)

// Queue is a private FIFO of requests bound to a Channel. Requests are written in the order
// they were sent; cancelling the queue does not affect other queues on the same channel.
type Queue struct {
	channel  *Channel
	requests map[ril.RequestID]*request // guarded by channel.mu
	lastID   atomic.Uint32
}

type request struct {
	queue    *Queue
	id       ril.RequestID
	code     ril.RequestCode
	payload  *ril.Request
	response ril.ResponseFunc
	destroy  ril.DestroyFunc

	// guarded by channel.mu
	serial  uint32
	dropped bool

	// accessed only on the event loop
	retries int
}

// Send queues the request for transmission. The response function receives the final
// status after all retries; the destroy function runs exactly once when the request is dropped.
// If the channel is already closed, the request completes immediately with ril.StatusRadioNotAvailable.
func (q *Queue) Send(payload *ril.Request, code ril.RequestCode, response ril.ResponseFunc, destroy ril.DestroyFunc) ril.RequestID {
	if payload == nil {
		payload = ril.NewRequest()
	}
	c := q.channel
	req := &request{
		queue:    q,
		id:       q.nextID(),
		code:     code,
		payload:  payload,
		response: response,
		destroy:  destroy,
	}

	c.mu.Lock()
	if c.down {
		c.mu.Unlock()
		req.complete(ril.StatusRadioNotAvailable, nil, true)
		return req.id
	}
	q.requests[req.id] = req
	c.outstanding[req] = struct{}{}
	c.mu.Unlock()

	c.Post(func() {
		c.submit(req)
	})
	return req.id
}

func (q *Queue) nextID() ril.RequestID {
	for {
		id := ril.RequestID(q.lastID.Add(1))
		if id != 0 {
			return id
		}
	}
}

// Cancel drops the request with the given id. It returns false if the request is not outstanding.
func (q *Queue) Cancel(id ril.RequestID, notify bool) bool {
	q.channel.mu.Lock()
	req, ok := q.requests[id]
	q.channel.mu.Unlock()
	if !ok {
		return false
	}
	return req.finish(ril.StatusCancelled, nil, notify)
}

// CancelAll drops all outstanding requests of this queue. With notify, every response function
// receives ril.StatusCancelled, otherwise only the destroy functions run.
func (q *Queue) CancelAll(notify bool) {
	q.channel.mu.Lock()
	requests := make([]*request, 0, len(q.requests))
	for _, req := range q.requests {
		requests = append(requests, req)
	}
	q.channel.mu.Unlock()

	for _, req := range requests {
		req.finish(ril.StatusCancelled, nil, notify)
	}
}

// Len returns the number of outstanding requests.
func (q *Queue) Len() int {
	q.channel.mu.Lock()
	defer q.channel.mu.Unlock()
	return len(q.requests)
}

// finish removes the request from all bookkeeping and invokes its callbacks.
// Only the first call has an effect.
func (r *request) finish(status ril.Status, data []byte, notify bool) bool {
	c := r.queue.channel
	c.mu.Lock()
	if r.dropped {
		c.mu.Unlock()
		return false
	}
	r.dropped = true
	delete(r.queue.requests, r.id)
	delete(c.outstanding, r)
	if r.serial != 0 {
		delete(c.pending, r.serial)
		r.serial = 0
	}
	c.mu.Unlock()

	r.complete(status, data, notify)
	return true
}

func (r *request) complete(status ril.Status, data []byte, notify bool) {
	if notify && r.response != nil {
		r.response(status, data)
	}
	if r.destroy != nil {
		r.destroy()
	}
}
