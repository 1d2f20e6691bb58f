package fingerprint

import (
	"testing"

	"github.com/graceverse/study-api/internal/models"
)

func TestCompute_NormalizesWhitespaceAndCase(t *testing.T) {
	a := Compute(models.InputScripture, "  John 3:16  ", models.LangEnglish)
	b := Compute(models.InputScripture, "john 3:16", models.LangEnglish)
	if a != b {
		t.Errorf("Compute() differs after normalization: %q vs %q", a, b)
	}
}

func TestCompute_IsStable64CharHex(t *testing.T) {
	fp := Compute(models.InputTopic, "Faith", models.LangHindi)
	if len(fp) != 64 {
		t.Errorf("len(Compute()) = %d, want 64", len(fp))
	}
	for _, c := range fp {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Fatalf("Compute() = %q, contains non-lower-hex rune %q", fp, c)
		}
	}
}

func TestCompute_DiffersByLanguageAndKind(t *testing.T) {
	base := Compute(models.InputScripture, "John 3:16", models.LangEnglish)
	byLang := Compute(models.InputScripture, "John 3:16", models.LangHindi)
	byKind := Compute(models.InputTopic, "John 3:16", models.LangEnglish)

	if base == byLang {
		t.Error("Compute() identical across different languages")
	}
	if base == byKind {
		t.Error("Compute() identical across different input kinds")
	}
}

func TestCompute_IsDeterministic(t *testing.T) {
	a := Compute(models.InputScripture, "Romans 8:28", models.LangMalayalam)
	b := Compute(models.InputScripture, "Romans 8:28", models.LangMalayalam)
	if a != b {
		t.Errorf("Compute() is not deterministic: %q vs %q", a, b)
	}
}
