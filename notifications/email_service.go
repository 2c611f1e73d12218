package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anjiri1684/companion_booking/logger"
	"github.com/anjiri1684/companion_booking/models"
	"gorm.io/gorm"
)

const brevoURL = "https://api.brevo.com/v3/smtp/email"

type BrevoService struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	HTTP        *http.Client
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

// NewBrevoService returns nil when the sender is not configured.
func NewBrevoService(apiKey, senderEmail, senderName string) *BrevoService {
	if apiKey == "" || senderEmail == "" || senderName == "" {
		logger.Log.Warn("⚠️ Email service not configured. Missing API Key, Sender Email, or Sender Name.")
		return nil
	}
	logger.Log.Info("✅ Email service initialized successfully.", "sender", senderEmail)
	return &BrevoService{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		HTTP:        &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *BrevoService) Send(ctx context.Context, toEmail, toName, subject, htmlContent string) error {
	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("invalid recipient email: %s", toEmail)
	}

	recipientName := toName
	if recipientName == "" {
		recipientName = toEmail[:strings.Index(toEmail, "@")]
	}

	payload := brevoPayload{
		Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:          []map[string]string{{"email": toEmail, "name": recipientName}},
		Subject:     subject,
		HTMLContent: htmlContent,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, brevoURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to send email via Brevo: %s", string(bodyBytes))
	}
	return nil
}

type emailTemplate struct {
	subject string
	body    string
}

var emailTemplates = map[Kind]emailTemplate{
	KindBookingRequested: {"You Have a New Booking Request", "<h1>New Booking</h1><p>A seeker has paid for a meetup with you. Please accept it in the app.</p>"},
	KindBookingConfirmed: {"Your Booking is Confirmed!", "<h1>Booking Confirmed</h1><p>Your payment was received and is held safely until the meetup is complete.</p>"},
	KindBookingAccepted:  {"Your Meetup Was Accepted", "<h1>Accepted</h1><p>Your companion accepted the booking. See you there!</p>"},
	KindBookingCancelled: {"Booking Cancelled", "<h1>Booking Cancelled</h1><p>A booking you are part of was cancelled.</p>"},
	KindRefundInitiated:  {"Your Refund is on its Way", "<h1>Refund Initiated</h1><p>We have started a refund to your original payment method.</p>"},
	KindMeetupReminder:   {"Upcoming Meetup Reminder", "<h1>Reminder</h1><p>Your meetup starts soon.</p>"},
	KindDisputeResolved:  {"Your Dispute Was Resolved", "<h1>Dispute Resolved</h1><p>An administrator has resolved the dispute on your booking.</p>"},
	KindPayoutApproved:   {"Payout Approved", "<h1>Payout Approved</h1><p>Your payout request was approved and will be transferred shortly.</p>"},
	KindPayoutRejected:   {"Payout Rejected", "<h1>Payout Rejected</h1><p>Your payout request was rejected. The amount is available in your wallet again.</p>"},
	KindPayoutCompleted:  {"Payout Sent", "<h1>Payout Sent</h1><p>Your payout has been transferred.</p>"},
	KindWalletCredited:   {"You've Earned a Credit!", "<h1>Congratulations!</h1><p>A credit has been added to your wallet.</p>"},
}

// EmailSink mails the intents that have a template and ignores the rest.
type EmailSink struct {
	DB    *gorm.DB
	Brevo *BrevoService
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(ctx context.Context, intent Intent) error {
	tmpl, ok := emailTemplates[intent.Kind]
	if !ok || s.Brevo == nil {
		return nil
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Select("id", "full_name", "email").First(&user, "id = ?", intent.UserID).Error; err != nil {
		return fmt.Errorf("lookup recipient: %w", err)
	}
	return s.Brevo.Send(ctx, user.Email, user.FullName, tmpl.subject, tmpl.body)
}
