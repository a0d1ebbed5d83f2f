package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"

	"github.com/iliyamo/theater-canteen/internal/config"
	"github.com/iliyamo/theater-canteen/internal/model"
)

// Mailer sends order receipts.
type Mailer interface {
	SendReceipt(ctx context.Context, to, theaterName string, o model.Order) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends mail through an SMTP relay with gomail.
type SMTPMailer struct {
	d    dialer
	from string
}

// NewMailer returns an SMTP mailer, or nil when no SMTP host is configured.
func NewMailer(cfg config.MailConfig) *SMTPMailer {
	if cfg.Host == "" {
		return nil
	}
	return &SMTPMailer{d: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), from: cfg.From}
}

var receiptTmpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": formatCents,
}).Parse(`<h2>{{.Theater}}</h2>
<p>Thank you{{if .Order.CustomerName}}, {{.Order.CustomerName}}{{end}}! Your order <strong>{{.Order.OrderNumber}}</strong> has been received.</p>
{{if .Order.SeatLabel}}<p>Seat: {{.Order.SeatLabel}}</p>{{end}}
<table>
<tr><th align="left">Item</th><th>Qty</th><th align="right">Amount</th></tr>
{{range .Order.Items}}<tr><td>{{.ProductName}}</td><td align="center">{{.Quantity}}</td><td align="right">{{money .LineTotalCents}}</td></tr>
{{end}}<tr><td colspan="2">Subtotal</td><td align="right">{{money .Order.SubtotalCents}}</td></tr>
<tr><td colspan="2">Tax</td><td align="right">{{money .Order.TaxCents}}</td></tr>
<tr><td colspan="2"><strong>Total</strong></td><td align="right"><strong>{{money .Order.TotalCents}}</strong></td></tr>
</table>
<p>Payment: {{.Order.PaymentMethod}}</p>`))

func formatCents(c uint32) string {
	return fmt.Sprintf("%d.%02d", c/100, c%100)
}

// RenderReceipt returns the subject and HTML body of an order receipt.
func RenderReceipt(theaterName string, o model.Order) (string, string, error) {
	var body bytes.Buffer
	if err := receiptTmpl.Execute(&body, struct {
		Theater string
		Order   model.Order
	}{theaterName, o}); err != nil {
		return "", "", err
	}
	return fmt.Sprintf("%s order %s", theaterName, o.OrderNumber), body.String(), nil
}

func (m *SMTPMailer) SendReceipt(_ context.Context, to, theaterName string, o model.Order) error {
	subject, body, err := RenderReceipt(theaterName, o)
	if err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)
	return m.d.DialAndSend(msg)
}
