package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/jordanmellermagic/Sensus-API/internal/domain"
)

// WebPushClient delivers notifications over the Web Push protocol with VAPID
// authentication.
type WebPushClient struct {
	PublicKey  string
	PrivateKey string
	Subscriber string // mailto: contact sent in the VAPID claims
	TTL        int
}

func NewWebPush(publicKey, privateKey, subscriber string) *WebPushClient {
	return &WebPushClient{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		Subscriber: subscriber,
		TTL:        60,
	}
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Deliver sends one push message to one subscription.
func (c *WebPushClient) Deliver(ctx context.Context, sub domain.Subscription, title, body string) error {
	if c.PrivateKey == "" {
		return errors.New("webpush: VAPID keys not configured")
	}

	payload, err := json.Marshal(pushPayload{Title: title, Body: body})
	if err != nil {
		return err
	}

	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}

	res, err := webpush.SendNotificationWithContext(ctx, payload, s, &webpush.Options{
		Subscriber:      c.Subscriber,
		VAPIDPublicKey:  c.PublicKey,
		VAPIDPrivateKey: c.PrivateKey,
		TTL:             c.TTL,
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return fmt.Errorf("webpush: push service returned %d", res.StatusCode)
	}
	return nil
}
