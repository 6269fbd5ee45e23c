// Package notifier implements the Notifier external adapter of
// spec.md §4.7: send(channel, to, template_id, vars) across the
// Sms/Mail/WebHook channels, with request-scoped dedup coalescing of
// identical (scene, receiver-set, payload) tuples (spec.md §5,
// "Backpressure").
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ideal-world/bios/internal/obs/mlog"
)

// Channel names the delivery transport.
type Channel string

const (
	ChannelSms     Channel = "Sms"
	ChannelMail    Channel = "Mail"
	ChannelWebHook Channel = "WebHook"
)

// Message is one notification request.
type Message struct {
	Channel    Channel
	To         string
	TemplateId string
	Vars       map[string]string
}

func (m Message) dedupKey() string {
	raw, _ := json.Marshal(m)
	return string(raw)
}

// Endpoint is where a channel's outbound HTTP call goes — every
// concrete channel in this deployment is a REST-reachable gateway
// (carrier SMS gateway, transactional-mail API, or the caller's own
// webhook URL), so one HTTP-POST client shape fits all three; no
// vendor SDK for Sms/Mail appears anywhere in the dependency pack, so
// a generic JSON POST is the correct default rather than inventing a
// provider-specific client.
type Endpoint struct {
	Channel Channel
	URL     string
}

// Notifier posts Messages to their configured channel endpoint,
// wrapped in a circuit breaker per channel (spec.md §4.7's adapters
// being the caller of the core's "vcode delivery failed" surfacing).
type Notifier struct {
	Client    *http.Client
	Endpoints map[Channel]string
	Logger    mlog.Logger

	breakers map[Channel]*gobreaker.CircuitBreaker
	mu       sync.Mutex
}

// NewNotifier builds a Notifier with a per-channel circuit breaker.
func NewNotifier(client *http.Client, endpoints map[Channel]string, logger mlog.Logger) *Notifier {
	return &Notifier{Client: client, Endpoints: endpoints, Logger: logger, breakers: map[Channel]*gobreaker.CircuitBreaker{}}
}

func (n *Notifier) breaker(ch Channel) *gobreaker.CircuitBreaker {
	n.mu.Lock()
	defer n.mu.Unlock()

	if b, ok := n.breakers[ch]; ok {
		return b
	}

	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notifier:" + string(ch),
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 5 },
	})

	n.breakers[ch] = b

	return b
}

type ctxKey struct{}

type coalesceSet struct {
	seen map[string]bool
}

// NewCoalesceContext attaches an empty per-request dedup set to ctx,
// so repeated Send calls for the same (channel, to, template, vars)
// within one request are coalesced to a single delivery.
func NewCoalesceContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, &coalesceSet{seen: map[string]bool{}})
}

// Send delivers msg, skipping it if an identical message was already
// sent earlier in the same request (per NewCoalesceContext).
func (n *Notifier) Send(ctx context.Context, msg Message) error {
	if set, ok := ctx.Value(ctxKey{}).(*coalesceSet); ok {
		key := msg.dedupKey()
		if set.seen[key] {
			return nil
		}

		set.seen[key] = true
	}

	url, ok := n.Endpoints[msg.Channel]
	if !ok {
		return fmt.Errorf("notifier: no endpoint configured for channel %q", msg.Channel)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = n.breaker(msg.Channel).Execute(func() (any, error) {
		return nil, n.post(ctx, url, body)
	})

	if err != nil && n.Logger != nil {
		n.Logger.Errorf("notifier: %s delivery to %s failed: %v", msg.Channel, msg.To, err)
	}

	return err
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notifier: endpoint returned status %d", resp.StatusCode)
	}

	return nil
}
