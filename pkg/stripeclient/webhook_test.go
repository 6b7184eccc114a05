package stripeclient

import (
	"errors"
	"testing"
	"time"
)

const testWebhookSecret = "whsec_test_secret"

func signedPayload() []byte {
	return []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","status":"succeeded"}}}`)
}

func TestConstructEvent_ValidSignature(t *testing.T) {
	payload := signedPayload()
	header := SignPayload(payload, testWebhookSecret, time.Now())

	event, err := ConstructEvent(payload, header, testWebhookSecret, DefaultWebhookTolerance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID != "evt_1" {
		t.Fatalf("expected evt_1, got %q", event.ID)
	}
	if event.Type != EventPaymentIntentSucceeded {
		t.Fatalf("expected %q, got %q", EventPaymentIntentSucceeded, event.Type)
	}
	if event.Data.Object.ID != "pi_1" {
		t.Fatalf("expected pi_1 in the event payload, got %q", event.Data.Object.ID)
	}
}

func TestConstructEvent_WrongSecret(t *testing.T) {
	payload := signedPayload()
	header := SignPayload(payload, "whsec_other", time.Now())

	_, err := ConstructEvent(payload, header, testWebhookSecret, DefaultWebhookTolerance)
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestConstructEvent_TamperedPayload(t *testing.T) {
	payload := signedPayload()
	header := SignPayload(payload, testWebhookSecret, time.Now())
	tampered := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_other","status":"succeeded"}}}`)

	_, err := ConstructEvent(tampered, header, testWebhookSecret, DefaultWebhookTolerance)
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestConstructEvent_StaleTimestamp(t *testing.T) {
	payload := signedPayload()
	header := SignPayload(payload, testWebhookSecret, time.Now().Add(-10*time.Minute))

	_, err := ConstructEvent(payload, header, testWebhookSecret, DefaultWebhookTolerance)
	if !errors.Is(err, ErrTimestampTooOld) {
		t.Fatalf("expected ErrTimestampTooOld, got %v", err)
	}
}

func TestConstructEvent_MalformedHeader(t *testing.T) {
	payload := signedPayload()

	tests := []struct {
		name   string
		header string
	}{
		{"empty header", ""},
		{"missing signature", "t=1700000000"},
		{"missing timestamp", "v1=deadbeef"},
		{"garbage timestamp", "t=soon,v1=deadbeef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConstructEvent(payload, tt.header, testWebhookSecret, 0)
			if !errors.Is(err, ErrInvalidSignatureHeader) {
				t.Fatalf("expected ErrInvalidSignatureHeader, got %v", err)
			}
		})
	}
}

func TestConstructEvent_SecondSignatureMatches(t *testing.T) {
	payload := signedPayload()
	header := SignPayload(payload, testWebhookSecret, time.Now())
	// Key rotation can deliver an extra v1 entry; one match is enough.
	headerWithTwo := "v1=0000000000000000000000000000000000000000000000000000000000000000," + header
	event, err := ConstructEvent(payload, headerWithTwo, testWebhookSecret, DefaultWebhookTolerance)
	if err != nil {
		t.Fatalf("expected one matching signature to be enough, got %v", err)
	}
	if event.ID != "evt_1" {
		t.Fatalf("unexpected event %q", event.ID)
	}
}
