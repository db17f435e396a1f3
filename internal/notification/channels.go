package notification

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"google.golang.org/api/option"

	"messaging-service/internal/models"
	"messaging-service/internal/ws"
)

// ChannelHandler delivers one notification over one channel. A nil
// return means delivered; any error marks the notification Failed with
// that reason. Handler errors never bounce the queue message.
type ChannelHandler interface {
	Deliver(ctx context.Context, n models.Notification, prefs models.Preferences) error
}

// PushChannel sends push notifications through Firebase Cloud Messaging.
type PushChannel struct {
	client *messaging.Client
}

// NewPushChannel initializes the FCM client from a credentials file or
// inline JSON credentials.
func NewPushChannel(ctx context.Context, credentialsPath, credentialsJSON string) (*PushChannel, error) {
	var opt option.ClientOption
	switch {
	case credentialsPath != "":
		opt = option.WithCredentialsFile(credentialsPath)
	case credentialsJSON != "":
		opt = option.WithCredentialsJSON([]byte(credentialsJSON))
	default:
		return nil, errors.New("firebase credentials are not configured")
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging client: %w", err)
	}
	return &PushChannel{client: client}, nil
}

func (c *PushChannel) Deliver(ctx context.Context, n models.Notification, prefs models.Preferences) error {
	if !prefs.PushEnabled {
		return errors.New("push disabled for user")
	}
	if prefs.PushToken == "" {
		return errors.New("no push token registered")
	}

	data := make(map[string]string, len(n.Data))
	for key, value := range n.Data {
		data[key] = fmt.Sprint(value)
	}

	msg := &messaging.Message{
		Token: prefs.PushToken,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: androidPriority(n.Priority),
		},
	}
	if _, err := c.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func androidPriority(p models.NotificationPriority) string {
	if p == models.PriorityHigh {
		return "high"
	}
	return "normal"
}

// EmailChannel sends notifications through SendGrid.
type EmailChannel struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

// NewEmailChannel constructs the SendGrid-backed email channel.
func NewEmailChannel(apiKey, fromEmail, fromName string) *EmailChannel {
	return &EmailChannel{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (c *EmailChannel) Deliver(ctx context.Context, n models.Notification, prefs models.Preferences) error {
	if !prefs.EmailEnabled {
		return errors.New("email disabled for user")
	}
	if prefs.EmailAddress == "" {
		return errors.New("no email address on file")
	}

	from := mail.NewEmail(c.fromName, c.fromEmail)
	to := mail.NewEmail("", prefs.EmailAddress)
	message := mail.NewSingleEmail(from, n.Title, to, n.Body, n.Body)

	response, err := c.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}
	return nil
}

// SMSChannel sends notifications through Twilio.
type SMSChannel struct {
	client *twilio.RestClient
	from   string
}

// NewSMSChannel constructs the Twilio-backed SMS channel.
func NewSMSChannel(accountSID, authToken, from string) *SMSChannel {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &SMSChannel{client: client, from: from}
}

func (c *SMSChannel) Deliver(ctx context.Context, n models.Notification, prefs models.Preferences) error {
	if !prefs.SMSEnabled {
		return errors.New("sms disabled for user")
	}
	if prefs.PhoneNumber == "" {
		return errors.New("no phone number on file")
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(prefs.PhoneNumber)
	params.SetFrom(c.from)
	params.SetBody(n.Body)

	if _, err := c.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	return nil
}

// InAppChannel pushes notifications to the user's live socket.
type InAppChannel struct {
	registry ws.Registry
}

// NewInAppChannel constructs the socket-backed in-app channel.
func NewInAppChannel(registry ws.Registry) *InAppChannel {
	return &InAppChannel{registry: registry}
}

func (c *InAppChannel) Deliver(_ context.Context, n models.Notification, prefs models.Preferences) error {
	if !prefs.InAppEnabled {
		return errors.New("in-app disabled for user")
	}
	if !c.registry.Send(n.UserID, models.EventNotificationNew, n) {
		return errors.New("no live connection")
	}
	return nil
}
