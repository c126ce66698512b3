package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"
)

// EmailService is the MailerSend fallback provider.
type EmailService struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewEmailService(apiKey, fromEmail, fromName string) *EmailService {
	return &EmailService{
		client: mailersend.NewMailersend(apiKey),
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
}

func (es *EmailService) deliver(ctx context.Context, name, email, subject, html string) error {
	message := es.client.Email.NewMessage()
	message.SetFrom(es.from)
	message.SetRecipients([]mailersend.Recipient{{Name: name, Email: email}})
	message.SetSubject(subject)
	message.SetHTML(html)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := es.client.Email.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (es *EmailService) SendWelcomeEmail(ctx context.Context, email, name string) error {
	html := fmt.Sprintf(`
	<div style="font-family: 'Segoe UI', Tahoma, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2 style="color: #3b82f6;">Selamat Datang di SALOME!</h2>
		<p>Halo %s,</p>
		<p>Akun Anda sudah aktif. Anda bisa langsung membuat grup patungan atau bergabung lewat kode undangan.</p>
		<p style="color: #6b7280;">-- Tim SALOME</p>
	</div>`, name)
	return es.deliver(ctx, name, email, "Selamat Datang di SALOME!", html)
}

func (es *EmailService) SendPaymentReceipt(ctx context.Context, data PaymentReceiptData) error {
	html := fmt.Sprintf(`
	<div style="font-family: 'Segoe UI', Tahoma, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2 style="color: #3b82f6;">Pembayaran Berhasil</h2>
		<p>Halo %s,</p>
		<p>Pembayaran Anda untuk grup <strong>%s</strong> (%s) sudah kami terima.</p>
		<p>Order ID: %s<br>Jumlah: Rp %d</p>
		<p style="color: #6b7280;">-- Tim SALOME</p>
	</div>`, data.Name, data.GroupName, data.AppName, data.OrderID, data.Amount)
	return es.deliver(ctx, data.Name, data.Email, fmt.Sprintf("Pembayaran Diterima - %s", data.GroupName), html)
}

func (es *EmailService) SendBroadcast(ctx context.Context, data BroadcastEmailData) error {
	html := fmt.Sprintf(`
	<div style="font-family: 'Segoe UI', Tahoma, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2 style="color: #3b82f6;">%s</h2>
		<p>Halo %s,</p>
		<p>%s</p>
		<p style="color: #6b7280;">-- Tim SALOME</p>
	</div>`, data.Title, data.Name, data.Message)
	return es.deliver(ctx, data.Name, data.Email, data.Title, html)
}
