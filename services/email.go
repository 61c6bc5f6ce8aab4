package services

import (
	"fmt"
	"html/template"
	"log"
	"strings"

	"planes_mejora_go/config"

	"github.com/resend/resend-go/v2"
)

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

var verdictTemplate = template.Must(template.New("verdict").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Actualización de su plan de mejoramiento</h2>
  <p>El plan <strong>{{.NumPlan}}</strong> de la entidad <strong>{{.Entidad}}</strong>
  fue evaluado con el resultado: <strong>{{.Verdict}}</strong>.</p>
  {{if .Aprobado}}
  <p>Ya puede registrar los seguimientos del plan en la plataforma.</p>
  {{else}}
  <p>Revise las observaciones registradas por el evaluador y ajuste el plan.</p>
  {{end}}
</div>`))

// BuildVerdictEmail builds the notification sent to an entity contact
// when an evaluator records or changes the verdict on a plan.
func BuildVerdictEmail(toEmail, entidad, numPlan, verdict string) *Email {
	data := struct {
		NumPlan  string
		Entidad  string
		Verdict  string
		Aprobado bool
	}{
		NumPlan:  numPlan,
		Entidad:  entidad,
		Verdict:  verdict,
		Aprobado: strings.EqualFold(verdict, "Aprobado"),
	}

	var html strings.Builder
	if err := verdictTemplate.Execute(&html, data); err != nil {
		log.Printf("Error rendering verdict email template: %v", err)
	}

	text := fmt.Sprintf("El plan %s de la entidad %s fue evaluado con el resultado: %s.",
		numPlan, entidad, verdict)

	return &Email{
		To:       []string{toEmail},
		Subject:  fmt.Sprintf("Plan de mejoramiento %s: %s", numPlan, verdict),
		HTMLBody: html.String(),
		TextBody: text,
	}
}

// SendEmail sends an email using Resend API
func SendEmail(cfg *config.Config, email *Email) error {
	// In development mode, log the email instead of sending
	if cfg.EmailTestMode {
		logEmailToConsole(email)
		return nil
	}

	if cfg.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY not configured")
	}

	client := resend.NewClient(cfg.ResendAPIKey)

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", cfg.EmailFromName, cfg.EmailFrom),
		To:      email.To,
		Subject: email.Subject,
	}
	if email.HTMLBody != "" {
		params.Html = email.HTMLBody
	}
	if email.TextBody != "" {
		params.Text = email.TextBody
	}
	if params.Html == "" && params.Text == "" {
		return fmt.Errorf("email must have either HTMLBody or TextBody")
	}

	sent, err := client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %v", err)
	}

	log.Printf("Email sent successfully via Resend (ID: %s) to: %v", sent.Id, email.To)
	return nil
}

// logEmailToConsole logs email details to console in development mode
func logEmailToConsole(email *Email) {
	separator := strings.Repeat("=", 80)
	log.Printf("\n%s\n📧 EMAIL (Development Mode - Not Actually Sent)\n%s", separator, separator)
	log.Printf("To: %v", email.To)
	log.Printf("Subject: %s", email.Subject)
	log.Printf("\n--- TEXT BODY ---\n%s", email.TextBody)
	log.Printf("%s\n", separator)
}

// SendEmailAsync sends an email in a goroutine so handlers never block
// the HTTP response on the mail provider.
func SendEmailAsync(cfg *config.Config, email *Email) {
	emailCopy := &Email{
		To:       append([]string{}, email.To...),
		Subject:  email.Subject,
		HTMLBody: email.HTMLBody,
		TextBody: email.TextBody,
	}

	go func() {
		if err := SendEmail(cfg, emailCopy); err != nil {
			log.Printf("Error sending async email: %v", err)
		}
	}()
}
