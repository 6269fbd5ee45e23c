package notifier

import "context"

// vcodeTemplateId is the fixed template id the vcode channels send
// under; the code itself is carried in the "code" template var.
const vcodeTemplateId = "vcode"

// VCodeSender adapts Notifier to credential.Notifier's narrower
// Send(ctx, channel, target, content) shape, so the credential
// package never needs to know about Message/Channel/coalescing.
type VCodeSender struct {
	Notifier *Notifier
}

// Send implements credential.Notifier.
func (s VCodeSender) Send(ctx context.Context, channel, target, content string) error {
	var ch Channel

	switch channel {
	case "mail":
		ch = ChannelMail
	case "sms":
		ch = ChannelSms
	default:
		ch = Channel(channel)
	}

	return s.Notifier.Send(ctx, Message{
		Channel:    ch,
		To:         target,
		TemplateId: vcodeTemplateId,
		Vars:       map[string]string{"code": content},
	})
}
