package llm

import (
	"context"
	"encoding/json"
)

// mockProvider returns a canned, always-valid StudyContent payload. Enabled
// via USE_MOCK=true so local development and tests never need live API keys.
type mockProvider struct{}

func newMockProvider() *mockProvider { return &mockProvider{} }

func (p *mockProvider) Name() string { return "mock" }

func (p *mockProvider) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	payload := map[string]any{
		"summary":              "This passage points to God's faithfulness across generations.",
		"interpretation":       "Read in its original context, the text calls its audience to trust rather than self-reliance.",
		"context":              "Written to a community facing uncertainty, the passage roots hope in God's past actions.",
		"related_verses":       []string{"Psalm 100:5", "Lamentations 3:22-23"},
		"reflection_questions": []string{"Where have you seen faithfulness in your own life?", "What would change if you trusted this promise today?"},
		"prayer_points":        []string{"Thank God for his faithfulness", "Ask for trust in uncertain circumstances"},
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
