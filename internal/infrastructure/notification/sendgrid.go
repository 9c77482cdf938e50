package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	appfee "github.com/feeledger/backend/internal/application/fee"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendGridConfig configures the SendGrid mailer
type SendGridConfig struct {
	APIKey      string
	FromAddress string
	FromName    string
	// OfficeAddress receives OFFICE audience notifications. Empty skips them.
	OfficeAddress string
	// Host overrides the API host; tests point it at a local server.
	Host string
}

// SendGridMailer emails notifications through the SendGrid v3 API.
// Guardian notifications go to their recipient; office notifications go to
// the configured office address.
type SendGridMailer struct {
	key    string
	host   string
	from   *sgmail.Email
	office string
	logger *zap.Logger
}

// NewSendGridMailer creates a SendGridMailer
func NewSendGridMailer(cfg SendGridConfig, logger *zap.Logger) (*SendGridMailer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("notification: sendgrid api key is required")
	}
	if cfg.FromAddress == "" {
		return nil, errors.New("notification: from address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	host := cfg.Host
	if host == "" {
		host = sendgridHost
	}
	return &SendGridMailer{
		key:    cfg.APIKey,
		host:   host,
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		office: cfg.OfficeAddress,
		logger: logger,
	}, nil
}

// Dispatch sends n as a plain text email. Notifications without an address
// to send to are skipped.
func (m *SendGridMailer) Dispatch(ctx context.Context, n appfee.Notification) error {
	to := m.recipient(n)
	if to == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(m.key, sendgridEndpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(to, n))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	m.logger.Debug("email sent",
		zap.String("kind", n.Kind),
		zap.String("audience", n.Audience),
		zap.String("to", to))
	return nil
}

func (m *SendGridMailer) recipient(n appfee.Notification) string {
	if n.Recipient != "" {
		return n.Recipient
	}
	if n.Audience == appfee.AudienceOffice {
		return m.office
	}
	return ""
}

func (m *SendGridMailer) prepare(to string, n appfee.Notification) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = n.Subject
	p.AddTos(sgmail.NewEmail("", to))

	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.AddPersonalizations(p)
	msg.AddContent(sgmail.NewContent("text/plain", n.Body))
	return msg
}

var _ appfee.NotificationDispatcher = (*SendGridMailer)(nil)
