package services

import (
	"context"
	"fmt"
	"html"

	"payment-webhooks/pkg/logging"

	brevo "github.com/getbrevo/brevo-go/lib"
)

// EmailSender delivers one transactional e-mail
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlContent, textContent string) error
}

// BrevoService provides Brevo email service
type BrevoService struct {
	client    *brevo.APIClient
	fromEmail string
	fromName  string
}

// NewBrevoService creates a new Brevo service instance
func NewBrevoService(apiKey, fromEmail, fromName string) *BrevoService {
	cfg := brevo.NewConfiguration()
	cfg.AddDefaultHeader("api-key", apiKey)
	return &BrevoService{
		client:    brevo.NewAPIClient(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// SendEmail sends email via Brevo API
func (s *BrevoService) SendEmail(ctx context.Context, to, subject, htmlContent, textContent string) error {
	_, resp, err := s.client.TransactionalEmailsApi.SendTransacEmail(ctx, brevo.SendSmtpEmail{
		Sender:      &brevo.SendSmtpEmailSender{Name: s.fromName, Email: s.fromEmail},
		To:          []brevo.SendSmtpEmailTo{{Email: to}},
		Subject:     subject,
		HtmlContent: htmlContent,
		TextContent: textContent,
	})
	if err != nil {
		if resp != nil {
			return fmt.Errorf("brevo API error: status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// PaymentEmailHooks mails an operator mailbox when payments settle or are cancelled
type PaymentEmailHooks struct {
	NopHooks
	sender EmailSender
	to     string
}

// NewPaymentEmailHooks creates the e-mail hook
func NewPaymentEmailHooks(sender EmailSender, to string) *PaymentEmailHooks {
	return &PaymentEmailHooks{sender: sender, to: to}
}

func (h *PaymentEmailHooks) PaymentSucceeded(ctx context.Context, e HookEvent) {
	h.send(ctx, e, "Payment received")
}

func (h *PaymentEmailHooks) PaymentCancelled(ctx context.Context, e HookEvent) {
	h.send(ctx, e, "Payment cancelled")
}

func (h *PaymentEmailHooks) send(ctx context.Context, e HookEvent, title string) {
	t := e.Transaction
	if t == nil || h.to == "" {
		return
	}

	subject := fmt.Sprintf("%s - %s order %s", title, e.Provider, t.AccountReference)
	textContent := fmt.Sprintf("%s\n\nProvider: %s\nTransaction: %s\nOrder: %s\nAmount: %s\nState: %s\n",
		title, e.Provider, t.ProviderTransactionID, t.AccountReference, t.Amount.StringFixed(2), t.State)
	htmlContent := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
	<h2>%s</h2>
	<table>
		<tr><td>Provider</td><td>%s</td></tr>
		<tr><td>Transaction</td><td>%s</td></tr>
		<tr><td>Order</td><td>%s</td></tr>
		<tr><td>Amount</td><td>%s</td></tr>
		<tr><td>State</td><td>%s</td></tr>
	</table>
</body>
</html>`,
		html.EscapeString(title),
		html.EscapeString(string(e.Provider)),
		html.EscapeString(t.ProviderTransactionID),
		html.EscapeString(t.AccountReference),
		t.Amount.StringFixed(2),
		t.State)

	ctx, cancel := context.WithTimeout(ctx, emailBudget)
	defer cancel()
	if err := h.sender.SendEmail(ctx, h.to, subject, htmlContent, textContent); err != nil {
		logging.Errorf("Failed to send payment email - provider: %s, transaction: %s, error: %v",
			e.Provider, t.ProviderTransactionID, err)
		return
	}
	logging.Infof("Payment email sent - provider: %s, transaction: %s", e.Provider, t.ProviderTransactionID)
}

var _ Hooks = (*PaymentEmailHooks)(nil)
