package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/config"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/models"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

const opsAlertEmailHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Marketplace Alert</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif; background-color: #f3f4f6; color: #1f2937; margin: 0; padding: 20px; }
  .container { max-width: 600px; margin: auto; background: #fff; border: 1px solid #e5e7eb; border-radius: 8px; }
  .header { background-color: #dbeafe; padding: 15px 20px; border-bottom: 1px solid #bfdbfe; }
  .header h1 { margin: 0; font-size: 20px; color: #1e40af; }
  .content { padding: 20px; }
  ul { list-style: none; padding: 0; }
  li { padding: 8px; border-bottom: 1px solid #eee; }
  li:last-child { border-bottom: none; }
  strong { color: #000; }
</style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>%s</h1>
    </div>
    <div class="content">
      <p>This is an automated alert for the operations team.</p>
      <ul>%s
        <li><strong>Timestamp (UTC):</strong> %s</li>
      </ul>
    </div>
  </div>
</body>
</html>`

// NotificationService fans marketplace events out to the operations team via
// SendGrid and Twilio. Delivery failures are logged and never fail the
// business operation that triggered them.
type NotificationService struct {
	cfg            *config.Config
	twilioClient   *twilio.RestClient
	sendgridClient *sendgrid.Client
}

func NewNotificationService(
	cfg *config.Config,
	twilioClient *twilio.RestClient,
	sendgridClient *sendgrid.Client,
) *NotificationService {
	return &NotificationService{
		cfg:            cfg,
		twilioClient:   twilioClient,
		sendgridClient: sendgridClient,
	}
}

func (n *NotificationService) NotifyNewBid(_ context.Context, l *models.Listing, b *models.Bid) {
	subject := fmt.Sprintf("New bid on listing %s", l.ID)
	detailsHTML := fmt.Sprintf(
		"<li><strong>Listing:</strong> %s</li><li><strong>Property:</strong> %s</li><li><strong>Bid:</strong> %s</li><li><strong>Amount:</strong> %.2f</li>",
		l.ID, l.PropertyID, b.ID, b.Amount,
	)
	plainText := fmt.Sprintf(
		"New bid placed.\n\nListing: %s\nProperty: %s\nBid: %s\nAmount: %.2f",
		l.ID, l.PropertyID, b.ID, b.Amount,
	)
	n.sendEmail(subject, plainText, detailsHTML)
}

func (n *NotificationService) NotifyEscrowReleased(_ context.Context, e *models.Escrow) {
	subject := fmt.Sprintf("Escrow %s released", e.ID)
	detailsHTML := fmt.Sprintf(
		"<li><strong>Escrow:</strong> %s</li><li><strong>Listing:</strong> %s</li><li><strong>Buyer:</strong> %s</li><li><strong>Seller:</strong> %s</li><li><strong>Amount:</strong> %.2f</li>",
		e.ID, e.ListingID, e.BuyerID, e.SellerID, e.Amount,
	)
	plainText := fmt.Sprintf(
		"Escrow released and sale settled.\n\nEscrow: %s\nListing: %s\nBuyer: %s\nSeller: %s\nAmount: %.2f",
		e.ID, e.ListingID, e.BuyerID, e.SellerID, e.Amount,
	)
	n.sendEmail(subject, plainText, detailsHTML)
}

// NotifyDisputeFiled pages the on-call dispute authority by SMS as well as
// email; disputes freeze funds and need a human quickly.
func (n *NotificationService) NotifyDisputeFiled(_ context.Context, e *models.Escrow) {
	reason := ""
	if e.DisputeReason != nil {
		reason = *e.DisputeReason
	}
	subject := fmt.Sprintf("[Dispute] Escrow %s frozen", e.ID)
	detailsHTML := fmt.Sprintf(
		"<li><strong>Escrow:</strong> %s</li><li><strong>Listing:</strong> %s</li><li><strong>Amount:</strong> %.2f</li><li><strong>Reason:</strong> %s</li>",
		e.ID, e.ListingID, e.Amount, reason,
	)
	plainText := fmt.Sprintf(
		"A dispute was filed and the escrow is frozen.\n\nEscrow: %s\nListing: %s\nAmount: %.2f\nReason: %s",
		e.ID, e.ListingID, e.Amount, reason,
	)
	n.sendEmail(subject, plainText, detailsHTML)
	n.sendSMS(subject + " :: " + plainText)
}

func (n *NotificationService) sendEmail(subject, plainText, detailsHTML string) {
	if n.sendgridClient == nil || n.cfg.OpsTeamEmail == "" {
		utils.Logger.Debugf("SendGrid disabled, skipping email: %s", subject)
		return
	}

	htmlBody := fmt.Sprintf(opsAlertEmailHTML, subject, detailsHTML, time.Now().UTC().Format(time.RFC1123Z))
	from := mail.NewEmail(fmt.Sprintf("%s Bot", n.cfg.OrganizationName), n.cfg.LDFlag_SendgridFromEmail)
	to := mail.NewEmail("Operations Team", n.cfg.OpsTeamEmail)
	msg := mail.NewSingleEmail(from, subject, to, plainText, htmlBody)
	msg.TrackingSettings = &mail.TrackingSettings{
		ClickTracking: &mail.ClickTrackingSetting{
			Enable: utils.Ptr(false),
		},
	}
	if n.cfg.LDFlag_SendgridSandboxMode {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}
	if _, err := n.sendgridClient.Send(msg); err != nil {
		utils.Logger.WithError(err).Errorf("Failed to send ops email: %s", subject)
	}
}

func (n *NotificationService) sendSMS(body string) {
	if n.twilioClient == nil || n.cfg.OpsTeamPhone == "" {
		utils.Logger.Debug("Twilio disabled, skipping SMS")
		return
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.cfg.OpsTeamPhone)
	params.SetFrom(n.cfg.LDFlag_TwilioFromPhone)
	params.SetBody(body)
	if _, err := n.twilioClient.Api.CreateMessage(params); err != nil {
		utils.Logger.WithError(err).Error("Failed to send ops SMS")
	}
}
