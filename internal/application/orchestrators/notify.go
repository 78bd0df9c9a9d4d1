package orchestrators

import (
	"context"
	"log/slog"
	"time"

	emailAdapter "studio/internal/adapters/email"
	domainOutbox "studio/internal/domain/outbox"
)

// Mail is a templated email an orchestrator wants sent.
type Mail struct {
	Template string // file name under the email templates dir, without .html
	To       []string
	Bcc      []string
	Data     map[string]any
}

// Mailer delivers Mail. Delivery is best effort: failures are handled inside
// the Mailer and never fail the calling use case.
type Mailer interface {
	Send(ctx context.Context, m Mail)
	SendAll(ctx context.Context, mails []Mail)
}

// MailRenderer turns a template and its data into a subject and HTML body.
type MailRenderer interface {
	Render(name string, data map[string]any) (emailAdapter.Message, error)
}

// OutboxSaver persists outbox entries.
type OutboxSaver interface {
	Save(ctx context.Context, e domainOutbox.Entry) error
}

// EmailNotifier is the production Mailer. Mail that fails to send is queued
// in the outbox for the retry worker.
type EmailNotifier struct {
	Renderer   MailRenderer
	Sender     emailAdapter.Sender
	From       string
	ReplyTo    string
	Outbox     OutboxSaver
	GenerateID func() string
	Now        func() time.Time
}

var _ Mailer = (*EmailNotifier)(nil)

// Send renders and sends one email.
func (n *EmailNotifier) Send(ctx context.Context, m Mail) {
	req, ok := n.render(m)
	if !ok {
		return
	}
	res, err := n.Sender.Send(ctx, req)
	if err != nil {
		n.enqueue(ctx, req, err)
		return
	}
	slog.Info("email_event", "event", "email_sent", "template", m.Template, "message_id", res.MessageID)
}

// SendAll renders every mail and sends them as one batch.
// If the batch fails part way, only the messages the provider did not accept are queued.
func (n *EmailNotifier) SendAll(ctx context.Context, mails []Mail) {
	reqs := make([]emailAdapter.SendRequest, 0, len(mails))
	for _, m := range mails {
		if req, ok := n.render(m); ok {
			reqs = append(reqs, req)
		}
	}
	if len(reqs) == 0 {
		return
	}
	sent, err := n.Sender.SendBatch(ctx, reqs)
	if err != nil {
		accepted := min(len(sent), len(reqs))
		slog.Warn("email_batch_partial", "sent", accepted, "queued", len(reqs)-accepted)
		for _, req := range reqs[accepted:] {
			n.enqueue(ctx, req, err)
		}
		return
	}
	slog.Info("email_event", "event", "email_batch_sent", "count", len(reqs))
}

func (n *EmailNotifier) render(m Mail) (emailAdapter.SendRequest, bool) {
	if len(m.To) == 0 && len(m.Bcc) == 0 {
		return emailAdapter.SendRequest{}, false
	}
	msg, err := n.Renderer.Render(m.Template, m.Data)
	if err != nil {
		slog.Error("email_render_failed", "template", m.Template, "error", err)
		return emailAdapter.SendRequest{}, false
	}
	return emailAdapter.SendRequest{
		To:      m.To,
		Bcc:     m.Bcc,
		From:    n.From,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		ReplyTo: n.ReplyTo,
	}, true
}

func (n *EmailNotifier) enqueue(ctx context.Context, req emailAdapter.SendRequest, cause error) {
	slog.Warn("email_send_failed", "subject", req.Subject, "error", cause)
	if n.Outbox == nil {
		return
	}
	entry, err := domainOutbox.NewEmailEntry(n.GenerateID(), domainOutbox.EmailPayload{
		To:      req.To,
		Bcc:     req.Bcc,
		Subject: req.Subject,
		HTML:    req.HTML,
		ReplyTo: req.ReplyTo,
	}, cause, n.Now())
	if err != nil {
		slog.Error("outbox_enqueue_failed", "error", err)
		return
	}
	if err := n.Outbox.Save(ctx, entry); err != nil {
		slog.Error("outbox_enqueue_failed", "entry_id", entry.ID, "error", err)
		return
	}
	slog.Info("outbox_event", "event", "email_queued", "entry_id", entry.ID)
}
