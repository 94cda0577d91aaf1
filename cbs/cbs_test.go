package cbs

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/ril-cbs/com"
	"github.com/ftl/ril-cbs/ril"
)

func newTestAdapter(config Config) (*Adapter, *fakeChannel, *fakeService) {
	channel := newFakeChannel()
	service := &fakeService{}
	adapter := New(channel, service, config)
	return adapter, channel, service
}

type callbackRecorder struct {
	calls []error
}

func (r *callbackRecorder) Callback(err error) {
	r.calls = append(r.calls, err)
}

func TestAdapter_DeferredRegistration(t *testing.T) {
	adapter, channel, service := newTestAdapter(Config{})

	assert.Equal(t, 2, channel.refs)
	assert.False(t, adapter.Registered())
	assert.Equal(t, 0, service.registered)
	assert.Equal(t, 0, channel.handlerCount(ril.UnsolResponseNewBroadcastSMS))

	channel.RunIdle()

	assert.True(t, adapter.Registered())
	assert.Equal(t, 1, service.registered)
	assert.Equal(t, 1, channel.handlerCount(ril.UnsolResponseNewBroadcastSMS))

	channel.RunIdle()
	assert.Equal(t, 1, service.registered)
}

func TestAdapter_RemoveBeforeRegistration(t *testing.T) {
	adapter, channel, service := newTestAdapter(Config{})
	task := channel.tasks[0]

	adapter.Remove()
	channel.RunIdle()

	assert.True(t, task.cancelled)
	assert.False(t, task.fired)
	assert.False(t, adapter.Registered())
	assert.Equal(t, 0, service.registered)
	assert.Equal(t, 0, channel.handlerCount(ril.UnsolResponseNewBroadcastSMS))
	assert.Equal(t, 1, channel.refs)
}

func TestAdapter_RemoveAfterRegistration(t *testing.T) {
	adapter, channel, _ := newTestAdapter(Config{})
	channel.RunIdle()

	adapter.Remove()

	assert.False(t, adapter.Registered())
	assert.Equal(t, 0, channel.handlerCount(ril.UnsolResponseNewBroadcastSMS))
	assert.Equal(t, 1, channel.refs)

	adapter.Remove()
	assert.Equal(t, 1, channel.refs)
}

func TestAdapter_SetTopics(t *testing.T) {
	tt := []struct {
		desc     string
		status   ril.Status
		expected error
	}{
		{"success", ril.StatusSuccess, nil},
		{"failure", ril.StatusGenericFailure, ErrFailed},
		{"retries exhausted", ril.StatusInvalidState, ErrFailed},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			adapter, channel, _ := newTestAdapter(Config{})
			channel.RunIdle()
			recorder := &callbackRecorder{}

			adapter.SetTopics("4352-4356", recorder.Callback)

			queue := channel.queues[0]
			require.Len(t, queue.sent, 1)
			req := queue.sent[0]
			assert.Equal(t, ril.RequestGSMSetBroadcastSMSConfig, req.code)
			assert.Equal(t, int32s(1, 4352, 4356, 0, 255, 1), req.payload.Bytes())
			assert.Equal(t, 1, adapter.Pending())

			req.finish(tc.status)

			assert.Equal(t, []error{tc.expected}, recorder.calls)
			assert.Equal(t, 1, req.destroyed)
			assert.Equal(t, 0, adapter.Pending())
		})
	}
}

func TestAdapter_StrictTopicRanges(t *testing.T) {
	adapter, channel, _ := newTestAdapter(Config{StrictTopicRanges: true})

	adapter.SetTopics("1-3,7-9", nil)

	req := channel.queues[0].sent[0]
	assert.Equal(t, int32s(2, 1, 3, 0, 255, 1, 7, 9, 0, 255, 1), req.payload.Bytes())
}

func TestAdapter_ClearTopics(t *testing.T) {
	adapter, channel, _ := newTestAdapter(Config{})
	recorder := &callbackRecorder{}

	adapter.ClearTopics(recorder.Callback)

	req := channel.queues[0].sent[0]
	assert.Equal(t, ril.RequestGSMSMSBroadcastActivation, req.code)
	assert.Equal(t, int32s(1, 1), req.payload.Bytes())

	req.finish(ril.StatusSuccess)
	assert.Equal(t, []error{nil}, recorder.calls)
}

func TestAdapter_SetActivation(t *testing.T) {
	adapter, channel, _ := newTestAdapter(Config{})

	adapter.SetActivation(true, nil)
	adapter.SetActivation(false, nil)

	sent := channel.queues[0].sent
	require.Len(t, sent, 2)
	assert.Equal(t, int32s(1, 0), sent[0].payload.Bytes())
	assert.Equal(t, int32s(1, 1), sent[1].payload.Bytes())

	sent[0].finish(ril.StatusSuccess)
	sent[1].finish(ril.StatusGenericFailure)
	assert.Equal(t, 0, adapter.Pending())
}

func TestAdapter_RemoveDropsPendingOperations(t *testing.T) {
	adapter, channel, _ := newTestAdapter(Config{})
	channel.RunIdle()
	recorder := &callbackRecorder{}

	adapter.SetTopics("1", recorder.Callback)
	adapter.ClearTopics(recorder.Callback)
	require.Equal(t, 2, adapter.Pending())

	adapter.Remove()

	assert.Empty(t, recorder.calls)
	assert.Equal(t, 0, adapter.Pending())
	for _, req := range channel.queues[0].sent {
		assert.Equal(t, 1, req.destroyed)
	}

	adapter.SetTopics("1", recorder.Callback)
	assert.Equal(t, []error{ErrFailed}, recorder.calls)
	assert.Len(t, channel.queues[0].sent, 2)
}

func TestAdapter_Notify(t *testing.T) {
	adapter, channel, service := newTestAdapter(Config{})
	channel.RunIdle()
	pdu := bytes.Repeat([]byte{0x11}, 88)

	channel.Event(ril.UnsolResponseNewBroadcastSMS, lengthPrefixed(88, pdu))
	channel.Event(ril.UnsolResponseNewBroadcastSMS, pdu)
	channel.Event(ril.UnsolResponseNewBroadcastSMS, []byte{0x01})

	assert.Equal(t, [][]byte{pdu, pdu}, service.pdus)

	adapter.Remove()
	channel.Event(ril.UnsolResponseNewBroadcastSMS, pdu)
	assert.Len(t, service.pdus, 2)
}

func TestAdapter_LogPrefix(t *testing.T) {
	buffer := new(bytes.Buffer)
	logger := zerolog.New(buffer).Level(zerolog.DebugLevel)
	adapter, channel, _ := newTestAdapter(Config{LogPrefix: "[ril_0]", Logger: &logger})

	channel.RunIdle()
	adapter.ClearTopics(nil)

	assert.Contains(t, buffer.String(), "[ril_0] registering for CB")
	assert.Contains(t, buffer.String(), "[ril_0] deactivating CB")
}

type channelService struct {
	registered chan struct{}
	pdus       chan []byte
}

func (s *channelService) Register() {
	s.registered <- struct{}{}
}

func (s *channelService) Notify(pdu []byte) {
	s.pdus <- append([]byte(nil), pdu...)
}

func TestAdapter_OverChannel(t *testing.T) {
	const timeout = time.Second
	device := com.NewInMemory()
	channel := com.New(device, com.Config{})
	service := &channelService{
		registered: make(chan struct{}, 1),
		pdus:       make(chan []byte, 1),
	}

	adapter := New(channel, service, Config{})
	channel.Unref()

	select {
	case <-service.registered:
	case <-time.After(timeout):
		require.FailNow(t, "no registration")
	}
	assert.True(t, adapter.Registered())

	pdu := bytes.Repeat([]byte{0x22}, 88)
	device.PrepareEvent(ril.UnsolResponseNewBroadcastSMS, lengthPrefixed(88, pdu))
	select {
	case actual := <-service.pdus:
		assert.Equal(t, pdu, actual)
	case <-time.After(timeout):
		require.FailNow(t, "no broadcast")
	}

	results := make(chan error, 1)
	adapter.SetTopics("4352", func(err error) {
		results <- err
	})
	written := device.WaitForRequests(1, timeout)
	require.Len(t, written, 1)
	assert.Equal(t, ril.RequestGSMSetBroadcastSMSConfig, written[0].Code)
	assert.Equal(t, int32s(1, 4352, 4352, 0, 255, 1), written[0].Payload)

	device.PrepareResponse(written[0].Serial, ril.StatusSuccess, nil)
	select {
	case err := <-results:
		assert.NoError(t, err)
	case <-time.After(timeout):
		require.FailNow(t, "no response")
	}

	adapter.Remove()
	channel.WaitUntilClosed()
	device.WaitUntilClosed()
}
