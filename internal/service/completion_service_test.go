package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"rag-chat/internal/llm"
)

type panickingCompleter struct{}

func (panickingCompleter) Complete(context.Context, string, string) (string, error) {
	panic("boom")
}

type deadlineCompleter struct {
	hadDeadline bool
}

func (d *deadlineCompleter) Complete(ctx context.Context, _, _ string) (string, error) {
	_, d.hadDeadline = ctx.Deadline()
	return "ok", nil
}

func TestCompletionServiceComplete_Success(t *testing.T) {
	client := &llm.MockClient{Response: "la paz empieza dentro"}
	svc := NewCompletionService(client, 0, nil)

	res := svc.Complete(context.Background(), "prompt", "system")
	if !res.OK() || res.Text != "la paz empieza dentro" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if client.LastPrompt != "prompt" || client.LastSystem != "system" {
		t.Fatalf("expected prompt and system forwarded, got %q/%q", client.LastPrompt, client.LastSystem)
	}
}

func TestCompletionServiceComplete_NeverReturnsError(t *testing.T) {
	cases := []struct {
		name   string
		svc    *CompletionService
		reason CompletionFailure
		text   string
	}{
		{name: "servicio nil", svc: nil, reason: CompletionNotConfigured, text: placeholderNotConfigured},
		{name: "sin cliente", svc: NewCompletionService(nil, 0, nil), reason: CompletionNotConfigured, text: placeholderNotConfigured},
		{name: "sin credencial", svc: NewCompletionService(&llm.MockClient{Err: llm.ErrNotConfigured}, 0, nil), reason: CompletionNotConfigured, text: placeholderNotConfigured},
		{name: "error de red", svc: NewCompletionService(&llm.MockClient{Err: errors.New("dial tcp: refused")}, 0, nil), reason: CompletionUpstream, text: placeholderUpstream},
		{name: "respuesta vacia", svc: NewCompletionService(&llm.MockClient{Response: "  "}, 0, nil), reason: CompletionEmpty, text: placeholderEmpty},
		{name: "panic", svc: NewCompletionService(panickingCompleter{}, 0, nil), reason: CompletionUpstream, text: placeholderUpstream},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := tc.svc.Complete(context.Background(), "p", "s")
			if res.Failure != tc.reason {
				t.Fatalf("expected %q, got %q", tc.reason, res.Failure)
			}
			if res.Text != tc.text {
				t.Fatalf("expected placeholder %q, got %q", tc.text, res.Text)
			}
			if res.OK() {
				t.Fatalf("expected OK() false")
			}
		})
	}
}

func TestCompletionServiceComplete_UpstreamErrorTextNotLeaked(t *testing.T) {
	svc := NewCompletionService(&llm.MockClient{Err: errors.New("secret-host:5432 refused")}, 0, nil)
	res := svc.Complete(context.Background(), "p", "")
	if res.Text == "" || containsAllInOrder(res.Text, []string{"secret-host"}) {
		t.Fatalf("expected generic placeholder, got %q", res.Text)
	}
}

func TestCompletionServiceComplete_AppliesTimeout(t *testing.T) {
	client := &deadlineCompleter{}
	NewCompletionService(client, time.Second, nil).Complete(context.Background(), "p", "")
	if !client.hadDeadline {
		t.Fatalf("expected context deadline when timeout configured")
	}

	client = &deadlineCompleter{}
	NewCompletionService(client, 0, nil).Complete(context.Background(), "p", "")
	if client.hadDeadline {
		t.Fatalf("expected no deadline without timeout")
	}
}
