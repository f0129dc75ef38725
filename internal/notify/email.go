package notify

import (
	"bytes"
	"context"
	"html/template"
	"net"
	"net/smtp"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/jordan-wright/email"

	"github.com/xenking/storefront/internal/domain/order"
)

// Message is a rendered email.
type Message struct {
	To      []string
	Subject string
	HTML    []byte
}

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	cfg  SMTPConfig
	auth smtp.Auth
}

// NewSMTPSender creates an SMTPSender. Authentication is skipped when no
// username is configured.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	s := &SMTPSender{cfg: cfg}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s
}

func (s *SMTPSender) addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s *SMTPSender) Send(_ context.Context, m Message) error {
	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = m.To
	e.Subject = m.Subject
	e.HTML = m.HTML
	if err := e.Send(s.addr(), s.auth); err != nil {
		return errors.Wrap(err, "smtp send")
	}
	return nil
}

var (
	customerTmpl = template.Must(template.New("customer").Parse(`<h2>Thank you for your order</h2>
<p>Order <b>{{.ID}}</b> has been paid and is now being processed.</p>
<table>
{{range .Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}} &times; {{.Price.StringFixed 2}}</td></tr>
{{end}}</table>
<p>Items: {{.ItemsPrice.StringFixed 2}}<br>
Discount: {{.DiscountPrice.StringFixed 2}}<br>
Tax: {{.TaxPrice.StringFixed 2}}<br>
Shipping: {{.ShippingPrice.StringFixed 2}}<br>
<b>Total: {{.TotalPrice.StringFixed 2}}</b></p>
<p>Shipping to {{.ShippingAddress.Address}}, {{.ShippingAddress.City}} {{.ShippingAddress.PostalCode}}, {{.ShippingAddress.Country}}</p>
`))
	operatorTmpl = template.Must(template.New("operator").Parse(`<p>New paid order <b>{{.ID}}</b> from {{.Email}}.</p>
<p>{{len .Items}} line(s), total {{.TotalPrice.StringFixed 2}}{{if .CouponCode}}, coupon {{.CouponCode}}{{end}}.</p>
`))
)

// EmailNotifier sends a confirmation to the buyer and a notice to the
// operator mailbox. Either recipient is skipped when its address is empty.
type EmailNotifier struct {
	sender   Sender
	operator string
}

var _ order.Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier creates an EmailNotifier.
func NewEmailNotifier(sender Sender, operator string) *EmailNotifier {
	return &EmailNotifier{sender: sender, operator: operator}
}

func (n *EmailNotifier) OrderPaid(ctx context.Context, o *order.Order) error {
	var errs []error
	if o.Email != "" {
		if err := n.send(ctx, customerTmpl, o.Email, "Order confirmation "+o.ID, o); err != nil {
			errs = append(errs, errors.Wrap(err, "customer"))
		}
	}
	if n.operator != "" {
		if err := n.send(ctx, operatorTmpl, n.operator, "Paid order "+o.ID, o); err != nil {
			errs = append(errs, errors.Wrap(err, "operator"))
		}
	}
	return errors.Join(errs...)
}

func (n *EmailNotifier) send(ctx context.Context, t *template.Template, to, subject string, o *order.Order) error {
	var buf bytes.Buffer
	if err := t.Execute(&buf, o); err != nil {
		return errors.Wrap(err, "render")
	}
	return n.sender.Send(ctx, Message{To: []string{to}, Subject: subject, HTML: buf.Bytes()})
}
