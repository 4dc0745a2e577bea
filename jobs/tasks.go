package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To        string  `json:"to"`
	Subject   string  `json:"subject"`
	Body      string  `json:"body"`
	Reference string  `json:"reference,omitempty"`
	URL       string  `json:"url,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends plain text mail through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer constructs an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// Send writes the message to the relay.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.cfg.Host == "" {
		return fmt.Errorf("mailer: smtp host not configured")
	}
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	return m.send(addr, auth, m.cfg.From, []string{to}, composeMessage(m.cfg.From, to, subject, body))
}

func composeMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.ReplaceAll(subject, "\n", " "))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders an amount with thousands separators and two decimals.
func FormatAmount(amount float64) string {
	return amountPrinter.Sprintf("%.2f", amount)
}

// LinkBody renders the mail sent with a purchase order link.
func LinkBody(p SendEmailPayload) string {
	var b strings.Builder
	b.WriteString("Dear Sir/Madam,\n\n")
	if p.Reference != "" {
		fmt.Fprintf(&b, "Please find purchase order %s at the link below.\n", p.Reference)
	} else {
		b.WriteString("Please find the document at the link below.\n")
	}
	if p.Amount > 0 {
		fmt.Fprintf(&b, "Order value: %s\n", FormatAmount(p.Amount))
	}
	fmt.Fprintf(&b, "\n%s\n", p.URL)
	return b.String()
}

// EmailJob processes TaskTypeSendEmail tasks.
type EmailJob struct {
	mailer Mailer
	logger *slog.Logger
}

// NewEmailJob constructs an EmailJob.
func NewEmailJob(mailer Mailer, logger *slog.Logger) *EmailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailJob{mailer: mailer, logger: logger}
}

// Handle delivers one queued mail. Bad payloads are not retried.
func (j *EmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s: %v: %w", TaskTypeSendEmail, err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.To) == "" {
		return fmt.Errorf("%s without recipient: %w", TaskTypeSendEmail, asynq.SkipRetry)
	}
	body := payload.Body
	if body == "" {
		body = LinkBody(payload)
	}
	if err := j.mailer.Send(ctx, payload.To, payload.Subject, body); err != nil {
		j.logger.Error("send email", slog.String("to", payload.To), slog.String("reference", payload.Reference), slog.Any("error", err))
		return err
	}
	j.logger.Info("email sent", slog.String("to", payload.To), slog.String("reference", payload.Reference))
	return nil
}
