package services

import (
	"fmt"

	appconfig "tnepic-backend/internal/config"
	"tnepic-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
)

type pusher interface {
	Push(n *apns2.Notification) (*apns2.Response, error)
}

// Notifier sends trip-completion pushes to the device of the profile
type Notifier struct {
	client pusher
	topic  string
}

// NewNotifier creates a notifier. Without a certificate file pushes are
// skipped and only logged.
func NewNotifier(cfg appconfig.APNSConfig) (*Notifier, error) {
	if cfg.CertFile == "" {
		return &Notifier{}, nil
	}

	cert, err := certificate.FromP12File(cfg.CertFile, cfg.CertPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs certificate: %w", err)
	}

	client := apns2.NewClient(cert)
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	return &Notifier{client: client, topic: cfg.Topic}, nil
}

// Enabled reports whether pushes are delivered
func (n *Notifier) Enabled() bool {
	return n.client != nil
}

// TripCompleted sends the completion push in the background
func (n *Notifier) TripCompleted(profile *models.Profile, trip *models.Trip) {
	if profile == nil || trip == nil || profile.PushToken == nil || *profile.PushToken == "" {
		return
	}
	if !n.Enabled() {
		log.Debug().Str("user_id", profile.ID).Str("trip_id", trip.ID).Msg("Push disabled, skipping trip notification")
		return
	}
	notification := n.tripNotification(*profile.PushToken, trip)
	go n.send(profile.ID, notification)
}

func (n *Notifier) tripNotification(deviceToken string, trip *models.Trip) *apns2.Notification {
	p := payload.NewPayload().
		AlertTitle("Trip completed!").
		AlertBody(fmt.Sprintf("%s: +%d Temple Tokens, +%d Dharma", trip.Title, trip.TokensEarned, trip.DharmaEarned)).
		Sound("default").
		Custom("trip_id", trip.ID)

	return &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       n.topic,
		Payload:     p,
	}
}

func (n *Notifier) send(userID string, notification *apns2.Notification) {
	res, err := n.client.Push(notification)
	if err != nil {
		pushesTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to send push notification")
		return
	}
	if !res.Sent() {
		pushesTotal.WithLabelValues("rejected").Inc()
		log.Warn().Str("user_id", userID).Int("status", res.StatusCode).Str("reason", res.Reason).Msg("Push notification rejected")
		return
	}
	pushesTotal.WithLabelValues("sent").Inc()
	log.Info().Str("user_id", userID).Str("apns_id", res.ApnsID).Msg("Push notification sent")
}
