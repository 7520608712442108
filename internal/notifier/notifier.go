// internal/notifier/notifier.go
package notifier

import (
	"context"
	"database/sql"
	"time"

	"kalikascan-admin/internal/common/config"
	"kalikascan-admin/internal/common/logger"
	"kalikascan-admin/internal/common/metrics"
	"kalikascan-admin/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"

	awsclients "kalikascan-admin/internal/common/aws"
)

// PushSender sends one push to a single subscriber.
type PushSender interface {
	SendIndie(ctx context.Context, subID, title, message string, data map[string]string) error
}

// Message is one notification to deliver to a user.
type Message struct {
	RecipientUID string
	Type         string
	Title        string
	Body         string
	Priority     string
	Data         map[string]string
}

// Report describes the delivery outcome. Delivery is best effort: a failed
// report accompanies an otherwise successful operation, it never fails one.
type Report struct {
	Attempted bool   `json:"attempted"`
	Delivered bool   `json:"delivered"`
	Channel   string `json:"channel,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Notifier delivers push first, falls back to email, and escalates high
// priority messages to SMS. Every attempt is recorded in the notifications
// audit table.
type Notifier struct {
	config    config.NotificationConfig
	db        *sql.DB
	logger    logger.Logger
	push      PushSender
	sesClient awsclients.SESService
	snsClient awsclients.SNSService
}

func New(cfg config.NotificationConfig, db *sql.DB, log logger.Logger, push PushSender, sesClient awsclients.SESService, snsClient awsclients.SNSService) *Notifier {
	return &Notifier{
		config:    cfg,
		db:        db,
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
		push:      push,
		sesClient: sesClient,
		snsClient: snsClient,
	}
}

// Notify delivers msg to its recipient. It never returns an error: failures
// are logged, counted, and surfaced through the Report.
func (n *Notifier) Notify(ctx context.Context, msg Message) Report {
	email, phone, pushToken := n.getRecipientContact(ctx, msg.RecipientUID)

	report := Report{}

	// Push first. The subscriber id is the uid; the stored token only
	// indicates the user registered for push at all.
	if n.config.Push.Enabled && pushToken != "" {
		report.Attempted = true
		report.Channel = models.ChannelPush
		if err := n.push.SendIndie(ctx, msg.RecipientUID, msg.Title, msg.Body, msg.Data); err != nil {
			n.logger.Warn("push send failed", map[string]interface{}{
				"recipientUid": msg.RecipientUID,
				"type":         msg.Type,
				"error":        err.Error(),
			})
			report.Detail = err.Error()
			metrics.NotificationsSent.WithLabelValues(models.ChannelPush, models.NotificationStatusFailed).Inc()
			n.recordAttempt(ctx, msg, models.ChannelPush, models.NotificationStatusFailed, err.Error())
		} else {
			report.Delivered = true
			metrics.NotificationsSent.WithLabelValues(models.ChannelPush, models.NotificationStatusSent).Inc()
			n.recordAttempt(ctx, msg, models.ChannelPush, models.NotificationStatusSent, "")
			return report
		}
	}

	// Email fallback.
	if !report.Delivered && n.config.Email.Enabled && email != "" {
		report.Attempted = true
		report.Channel = models.ChannelEmail
		if err := n.sendEmail(ctx, email, msg.Title, msg.Body); err != nil {
			n.logger.Warn("email send failed", map[string]interface{}{
				"recipientUid": msg.RecipientUID,
				"type":         msg.Type,
				"error":        err.Error(),
			})
			report.Detail = err.Error()
			metrics.NotificationsSent.WithLabelValues(models.ChannelEmail, models.NotificationStatusFailed).Inc()
			n.recordAttempt(ctx, msg, models.ChannelEmail, models.NotificationStatusFailed, err.Error())
		} else {
			report.Delivered = true
			report.Detail = ""
			metrics.NotificationsSent.WithLabelValues(models.ChannelEmail, models.NotificationStatusSent).Inc()
			n.recordAttempt(ctx, msg, models.ChannelEmail, models.NotificationStatusSent, "")
		}
	}

	// SMS only for high priority messages.
	if n.config.SMS.Enabled && phone != "" && msg.Priority == n.config.SMS.PriorityThreshold {
		report.Attempted = true
		if err := n.sendSMS(ctx, phone, msg.Body); err != nil {
			n.logger.Warn("SMS send failed", map[string]interface{}{
				"recipientUid": msg.RecipientUID,
				"error":        err.Error(),
			})
			metrics.NotificationsSent.WithLabelValues(models.ChannelSMS, models.NotificationStatusFailed).Inc()
			n.recordAttempt(ctx, msg, models.ChannelSMS, models.NotificationStatusFailed, err.Error())
		} else {
			metrics.NotificationsSent.WithLabelValues(models.ChannelSMS, models.NotificationStatusSent).Inc()
			n.recordAttempt(ctx, msg, models.ChannelSMS, models.NotificationStatusSent, "")
			if !report.Delivered {
				report.Delivered = true
				report.Channel = models.ChannelSMS
				report.Detail = ""
			}
		}
	}

	if !report.Attempted {
		n.recordAttempt(ctx, msg, "", models.NotificationStatusSkipped, "no reachable channel")
	}

	return report
}

func (n *Notifier) getRecipientContact(ctx context.Context, uid string) (email, phone, pushToken string) {
	var e, p, t sql.NullString
	err := n.db.QueryRowContext(ctx,
		`SELECT email, phone, push_token FROM users WHERE uid = $1`, uid).Scan(&e, &p, &t)
	if err != nil {
		n.logger.Warn("recipient lookup failed", map[string]interface{}{
			"recipientUid": uid,
			"error":        err.Error(),
		})
		return "", "", ""
	}
	return e.String, p.String, t.String
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
				Html: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.Email.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, to, message string) error {
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

// recordAttempt is non-critical, a failed insert is logged and dropped.
func (n *Notifier) recordAttempt(ctx context.Context, msg Message, channel, status, detail string) {
	_, err := n.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_uid, type, channel, status, title, body, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		uuid.New().String(),
		msg.RecipientUID,
		msg.Type,
		channel,
		status,
		msg.Title,
		msg.Body,
		detail,
	)
	if err != nil {
		n.logger.Warn("notification audit insert failed", map[string]interface{}{
			"recipientUid": msg.RecipientUID,
			"error":        err.Error(),
		})
	}
}

// NotifyWithTimeout wraps Notify with the configured delivery deadline so a
// slow provider cannot hold up the calling request.
func (n *Notifier) NotifyWithTimeout(ctx context.Context, msg Message) Report {
	timeout := time.Duration(n.config.Push.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	nctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return n.Notify(nctx, msg)
}
