package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_PostsToConfiguredEndpoint(t *testing.T) {
	var hits int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.Client(), map[Channel]string{ChannelWebHook: srv.URL}, nil)

	err := n.Send(context.Background(), Message{Channel: ChannelWebHook, To: "https://example.com/hook", TemplateId: "t1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestSend_CoalescesIdenticalMessagesWithinRequest(t *testing.T) {
	var hits int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.Client(), map[Channel]string{ChannelSms: srv.URL}, nil)

	ctx := NewCoalesceContext(context.Background())
	msg := Message{Channel: ChannelSms, To: "+10000000000", TemplateId: "vcode", Vars: map[string]string{"code": "123456"}}

	require.NoError(t, n.Send(ctx, msg))
	require.NoError(t, n.Send(ctx, msg))

	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestSend_UnknownChannelReturnsError(t *testing.T) {
	n := NewNotifier(http.DefaultClient, map[Channel]string{}, nil)

	err := n.Send(context.Background(), Message{Channel: ChannelMail, To: "a@example.com"})
	require.Error(t, err)
}

func TestVCodeSender_MapsCredentialChannelsToNotifierChannels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.Client(), map[Channel]string{ChannelMail: srv.URL, ChannelSms: srv.URL}, nil)
	sender := VCodeSender{Notifier: n}

	require.NoError(t, sender.Send(context.Background(), "mail", "a@example.com", "000000"))
}
