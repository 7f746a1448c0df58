package delivery

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

type fakeSES struct {
	sendCalls int
	lastInput *sesv2.SendEmailInput
	sendErr   error
	verified  bool
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.sendCalls++
	f.lastInput = params
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	id := "msg-123"
	return &sesv2.SendEmailOutput{MessageId: &id}, nil
}

func (f *fakeSES) GetEmailIdentity(_ context.Context, _ *sesv2.GetEmailIdentityInput, _ ...func(*sesv2.Options)) (*sesv2.GetEmailIdentityOutput, error) {
	return &sesv2.GetEmailIdentityOutput{VerifiedForSendingStatus: f.verified}, nil
}

func TestSendDigest(t *testing.T) {
	fake := &fakeSES{}
	s := &Sender{client: fake, senderEmail: "digest@example.org"}

	result, err := s.SendDigest(context.Background(), "Subject", "text", "<html></html>", []string{"a@example.org", "b@example.org"}, false)
	if err != nil {
		t.Fatalf("SendDigest: %v", err)
	}

	if fake.sendCalls != 1 {
		t.Errorf("SendEmail called %d times, want 1", fake.sendCalls)
	}
	if !result.Success || result.MessageID != "msg-123" {
		t.Errorf("unexpected result: %+v", result)
	}
	if got := len(fake.lastInput.Destination.ToAddresses); got != 2 {
		t.Errorf("got %d recipients in SES input, want 2", got)
	}
	if *fake.lastInput.FromEmailAddress != "digest@example.org" {
		t.Errorf("from = %q", *fake.lastInput.FromEmailAddress)
	}
	body := fake.lastInput.Content.Simple.Body
	if *body.Text.Data != "text" || *body.Html.Data != "<html></html>" {
		t.Error("body parts not wired through")
	}
}

func TestSendDigestDryRun(t *testing.T) {
	fake := &fakeSES{}
	s := &Sender{client: fake, senderEmail: "digest@example.org"}

	result, err := s.SendDigest(context.Background(), "Subject", "text", "html", []string{"a@example.org"}, true)
	if err != nil {
		t.Fatalf("SendDigest dry run: %v", err)
	}
	if fake.sendCalls != 0 {
		t.Errorf("dry run made %d SES calls", fake.sendCalls)
	}
	if result.MessageID != "dry-run" || !result.Success {
		t.Errorf("unexpected dry run result: %+v", result)
	}
}

func TestSendDigestNoRecipients(t *testing.T) {
	s := &Sender{client: &fakeSES{}, senderEmail: "digest@example.org"}
	if _, err := s.SendDigest(context.Background(), "Subject", "t", "h", nil, false); err == nil {
		t.Error("expected error for empty recipient list")
	}
}

func TestSendDigestPropagatesError(t *testing.T) {
	fake := &fakeSES{sendErr: fmt.Errorf("throttled")}
	s := &Sender{client: fake, senderEmail: "digest@example.org"}
	if _, err := s.SendDigest(context.Background(), "Subject", "t", "h", []string{"a@example.org"}, false); err == nil {
		t.Error("expected send error to propagate")
	}
}

func TestVerifySender(t *testing.T) {
	s := &Sender{client: &fakeSES{verified: true}, senderEmail: "digest@example.org"}
	if err := s.VerifySender(context.Background()); err != nil {
		t.Errorf("VerifySender on verified identity: %v", err)
	}

	s = &Sender{client: &fakeSES{verified: false}, senderEmail: "digest@example.org"}
	if err := s.VerifySender(context.Background()); err == nil {
		t.Error("expected error for unverified identity")
	}
}
