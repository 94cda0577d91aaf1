package cbs

import "github.com/ftl/ril-cbs/ril"

// fakeChannel runs everything synchronously: idle tasks only run on RunIdle,
// requests only complete on Respond.
type fakeChannel struct {
	refs        int
	tasks       []*fakeTask
	handlers    map[ril.HandlerID]fakeHandler
	lastHandler ril.HandlerID
	queues      []*fakeQueue
}

type fakeHandler struct {
	code    ril.UnsolCode
	handler ril.UnsolHandler
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		refs:     1,
		handlers: make(map[ril.HandlerID]fakeHandler),
	}
}

func (c *fakeChannel) Ref()   { c.refs++ }
func (c *fakeChannel) Unref() { c.refs-- }

func (c *fakeChannel) NewQueue() ril.Queue {
	queue := &fakeQueue{}
	c.queues = append(c.queues, queue)
	return queue
}

func (c *fakeChannel) AddUnsolHandler(code ril.UnsolCode, handler ril.UnsolHandler) ril.HandlerID {
	c.lastHandler++
	c.handlers[c.lastHandler] = fakeHandler{code: code, handler: handler}
	return c.lastHandler
}

func (c *fakeChannel) RemoveHandler(id ril.HandlerID) {
	delete(c.handlers, id)
}

func (c *fakeChannel) Idle(fn func()) ril.Task {
	task := &fakeTask{fn: fn}
	c.tasks = append(c.tasks, task)
	return task
}

// RunIdle runs all scheduled tasks that were not cancelled.
func (c *fakeChannel) RunIdle() {
	tasks := c.tasks
	c.tasks = nil
	for _, task := range tasks {
		if !task.fired && !task.cancelled {
			task.fired = true
			task.fn()
		}
	}
}

// Event delivers an unsolicited event to all matching handlers.
func (c *fakeChannel) Event(code ril.UnsolCode, data []byte) {
	for _, h := range c.handlers {
		if h.code == code {
			h.handler(code, data)
		}
	}
}

func (c *fakeChannel) handlerCount(code ril.UnsolCode) int {
	result := 0
	for _, h := range c.handlers {
		if h.code == code {
			result++
		}
	}
	return result
}

type fakeTask struct {
	fn        func()
	fired     bool
	cancelled bool
}

func (t *fakeTask) Cancel() bool {
	if t.fired || t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}

type fakeQueue struct {
	sent []*fakeRequest
}

type fakeRequest struct {
	payload   *ril.Request
	code      ril.RequestCode
	response  ril.ResponseFunc
	destroy   ril.DestroyFunc
	done      bool
	destroyed int
}

func (q *fakeQueue) Send(payload *ril.Request, code ril.RequestCode, response ril.ResponseFunc, destroy ril.DestroyFunc) ril.RequestID {
	q.sent = append(q.sent, &fakeRequest{
		payload:  payload,
		code:     code,
		response: response,
		destroy:  destroy,
	})
	return ril.RequestID(len(q.sent))
}

func (q *fakeQueue) CancelAll(notify bool) {
	for _, req := range q.sent {
		if req.done {
			continue
		}
		if notify {
			req.finish(ril.StatusCancelled)
		} else {
			req.drop()
		}
	}
}

func (r *fakeRequest) finish(status ril.Status) {
	r.done = true
	if r.response != nil {
		r.response(status, nil)
	}
	r.drop()
}

func (r *fakeRequest) drop() {
	r.done = true
	if r.destroy != nil {
		r.destroy()
		r.destroyed++
	}
}

type fakeService struct {
	registered int
	pdus       [][]byte
}

func (s *fakeService) Register() {
	s.registered++
}

func (s *fakeService) Notify(pdu []byte) {
	s.pdus = append(s.pdus, pdu)
}
