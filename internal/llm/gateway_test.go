package llm

import (
	"context"
	"testing"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/models"
)

func TestGateway_Generate_Mock(t *testing.T) {
	gw := NewGateway(Config{UseMock: true, MaxRetries: 3})

	content, err := gw.Generate(context.Background(), models.InputScripture, "John 3:16", models.LangEnglish)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if err := content.Validate(); err != nil {
		t.Errorf("Generate() returned invalid content: %v", err)
	}
}

func TestGateway_Generate_NoProvidersConfigured(t *testing.T) {
	gw := NewGateway(Config{MaxRetries: 3})

	_, err := gw.Generate(context.Background(), models.InputTopic, "forgiveness", models.LangEnglish)
	if err == nil {
		t.Fatal("Generate() error = nil, want upstream error")
	}
	if apperror.KindOf(err) != apperror.KindUpstream {
		t.Errorf("Generate() kind = %v, want KindUpstream", apperror.KindOf(err))
	}
}

type stubProvider struct {
	name    string
	replies []stubReply
	calls   int
}

type stubReply struct {
	body string
	err  error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	r := p.replies[p.calls]
	p.calls++
	return r.body, r.err
}

func TestGateway_Generate_RetriesMalformedThenSucceeds(t *testing.T) {
	good := `{"summary":"s","interpretation":"i","context":"c","related_verses":["Gen 1:1"],"reflection_questions":["q"],"prayer_points":["p"]}`
	p := &stubProvider{name: "stub", replies: []stubReply{
		{body: "not json"},
		{body: good},
	}}
	gw := &Gateway{providers: []Provider{p}, cfg: Config{MaxRetries: 3}}

	content, err := gw.Generate(context.Background(), models.InputScripture, "Genesis 1:1", models.LangEnglish)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if content.Summary != "s" {
		t.Errorf("Generate() = %+v, want Summary=s", content)
	}
}

func TestGateway_Generate_RefusalIsTerminal(t *testing.T) {
	p := &stubProvider{name: "stub", replies: []stubReply{
		{err: &RefusalError{Provider: "stub", Reason: "content_filter"}},
	}}
	gw := &Gateway{providers: []Provider{p}, cfg: Config{MaxRetries: 3}}

	_, err := gw.Generate(context.Background(), models.InputTopic, "anything", models.LangEnglish)
	if apperror.KindOf(err) != apperror.KindUnprocessable {
		t.Errorf("Generate() kind = %v, want KindUnprocessable", apperror.KindOf(err))
	}
	if p.calls != 1 {
		t.Errorf("provider called %d times, want 1 (no retry on refusal)", p.calls)
	}
}
