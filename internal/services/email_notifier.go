package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/mwhitfield/vigil/internal/models"
)

// AWSSESNotifier delivers alert intents as email through AWS SES
type AWSSESNotifier struct {
	sesClient      *ses.Client
	fromAddress    string
	adminAddresses []string
	logger         *slog.Logger
}

// NewAWSSESNotifier creates a new AWS SES alert notifier
func NewAWSSESNotifier(region, fromAddress string, adminAddresses []string, logger *slog.Logger) (*AWSSESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESNotifier{
		sesClient:      ses.NewFromConfig(cfg),
		fromAddress:    fromAddress,
		adminAddresses: adminAddresses,
		logger:         logger,
	}, nil
}

var alertSubjects = map[string]string{
	models.AlertAccountLocked:   "Account temporarily locked",
	models.AlertSuspiciousLogin: "Unusual sign-in on your account",
	models.AlertSessionRevoked:  "A device was signed out of your account",
	models.AlertQuotaOverride:   "Assist quota adjusted by an administrator",
}

var alertLeads = map[string]string{
	models.AlertAccountLocked:   "Repeated failed sign-in attempts locked this account. No further attempts will be evaluated until the lock expires.",
	models.AlertSuspiciousLogin: "A successful sign-in happened implausibly far from the previous one. If this was you (for example through a VPN), no action is needed.",
	models.AlertSessionRevoked:  "One of the devices signed in to this account was revoked. If this was unexpected, review your remaining sessions.",
	models.AlertQuotaOverride:   "An administrator changed the daily assist budget for an account.",
}

// Send formats and delivers one alert intent
func (n *AWSSESNotifier) Send(ctx context.Context, intent *models.AlertIntent) error {
	recipients := n.recipientsFor(intent)
	if len(recipients) == 0 {
		n.logger.Warn("alert has no deliverable recipients",
			slog.String("alert_type", intent.Type),
			slog.String("recipient", intent.Recipient),
		)
		return nil
	}

	subject, ok := alertSubjects[intent.Type]
	if !ok {
		subject = "Security notice"
	}

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(n.htmlBody(intent)),
				},
				Text: &types.Content{
					Data: aws.String(n.textBody(intent)),
				},
			},
		},
	}

	result, err := n.sesClient.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	n.logger.Info("alert email sent",
		slog.String("alert_type", intent.Type),
		slog.String("message_id", aws.ToString(result.MessageId)),
	)

	return nil
}

func (n *AWSSESNotifier) recipientsFor(intent *models.AlertIntent) []string {
	if intent.Recipient == models.AlertRecipientAdmins {
		return n.adminAddresses
	}
	if intent.Email == "" {
		return nil
	}
	return []string{intent.Email}
}

// sortedDetails renders the detail payload deterministically
func sortedDetails(details map[string]string) []string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, details[k]))
	}
	return lines
}

func (n *AWSSESNotifier) htmlBody(intent *models.AlertIntent) string {
	var rows strings.Builder
	for _, line := range sortedDetails(intent.Details) {
		rows.WriteString("<li><code>" + line + "</code></li>\n")
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .content { padding: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>%s</h1>
        </div>
        <div class="content">
            <p>%s</p>
            <ul>
%s            </ul>
        </div>
        <div class="footer">
            <p>This is an automated security notice. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, alertSubjects[intent.Type], alertLeads[intent.Type], rows.String())
}

func (n *AWSSESNotifier) textBody(intent *models.AlertIntent) string {
	var b strings.Builder
	b.WriteString(alertSubjects[intent.Type])
	b.WriteString("\n\n")
	b.WriteString(alertLeads[intent.Type])
	b.WriteString("\n\n")
	for _, line := range sortedDetails(intent.Details) {
		b.WriteString("  " + line + "\n")
	}
	b.WriteString("\nThis is an automated security notice. Please do not reply to this email.\n")
	return b.String()
}
