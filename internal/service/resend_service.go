package service

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// ResendService is the primary email provider.
type ResendService struct {
	client   *resend.Client
	from     string
	fromName string
}

func NewResendService(apiKey, fromEmail, fromName string) *ResendService {
	return &ResendService{
		client:   resend.NewClient(apiKey),
		from:     fromEmail,
		fromName: fromName,
	}
}

func (rs *ResendService) sender() string {
	return fmt.Sprintf("%s <%s>", rs.fromName, rs.from)
}

func (rs *ResendService) SendWelcomeEmail(ctx context.Context, email, name string) error {
	html := fmt.Sprintf(`
	<div style="font-family: 'Segoe UI', Tahoma, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2 style="color: #3b82f6;">Selamat Datang di SALOME!</h2>
		<p>Halo %s,</p>
		<p>Akun Anda sudah aktif. Anda bisa langsung membuat grup patungan atau bergabung lewat kode undangan.</p>
		<p style="color: #6b7280;">-- Tim SALOME</p>
	</div>`, name)

	params := &resend.SendEmailRequest{
		From:    rs.sender(),
		To:      []string{email},
		Subject: "Selamat Datang di SALOME!",
		Html:    html,
	}
	if _, err := rs.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}
	return nil
}

func (rs *ResendService) SendPaymentReceipt(ctx context.Context, data PaymentReceiptData) error {
	html := fmt.Sprintf(`
	<div style="font-family: 'Segoe UI', Tahoma, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2 style="color: #3b82f6;">Pembayaran Berhasil</h2>
		<p>Halo %s,</p>
		<p>Pembayaran Anda untuk grup <strong>%s</strong> (%s) sudah kami terima.</p>
		<table style="width: 100%%; border-collapse: collapse; margin: 16px 0;">
			<tr><td style="padding: 6px 0; color: #6b7280;">Order ID</td><td>%s</td></tr>
			<tr><td style="padding: 6px 0; color: #6b7280;">Jumlah</td><td>Rp %d</td></tr>
		</table>
		<p>Grup akan aktif setelah semua anggota melunasi pembayaran.</p>
		<p style="color: #6b7280;">-- Tim SALOME</p>
	</div>`, data.Name, data.GroupName, data.AppName, data.OrderID, data.Amount)

	params := &resend.SendEmailRequest{
		From:    rs.sender(),
		To:      []string{data.Email},
		Subject: fmt.Sprintf("Pembayaran Diterima - %s", data.GroupName),
		Html:    html,
	}
	if _, err := rs.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send payment receipt: %w", err)
	}
	return nil
}

func (rs *ResendService) SendBroadcast(ctx context.Context, data BroadcastEmailData) error {
	html := fmt.Sprintf(`
	<div style="font-family: 'Segoe UI', Tahoma, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2 style="color: #3b82f6;">%s</h2>
		<p>Halo %s,</p>
		<p>%s</p>
		<p style="color: #6b7280;">-- Tim SALOME</p>
	</div>`, data.Title, data.Name, data.Message)

	params := &resend.SendEmailRequest{
		From:    rs.sender(),
		To:      []string{data.Email},
		Subject: data.Title,
		Html:    html,
	}
	if _, err := rs.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send broadcast email: %w", err)
	}
	return nil
}
