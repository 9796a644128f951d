package composer

import (
	"strings"
	"testing"

	"github.com/paperdesk/advisor/internal/ingest"
	"github.com/paperdesk/advisor/internal/retrieval"
)

func scored(text string, score float64) retrieval.ScoredChunk {
	return retrieval.ScoredChunk{
		Chunk: ingest.Chunk{ID: "c", Page: 1, Text: text},
		Score: score,
	}
}

func TestCompose_SystemThenUser(t *testing.T) {
	msgs := Compose("Should I buy bonds?", nil, nil)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "system" {
		t.Errorf("msgs[0].Role = %q, want system", msgs[0].Role)
	}
	if msgs[1].Role != "user" {
		t.Errorf("msgs[1].Role = %q, want user", msgs[1].Role)
	}
	if msgs[1].Content != "Should I buy bonds?" {
		t.Errorf("user content = %q, want the bare query", msgs[1].Content)
	}
}

func TestCompose_IncludesReferenceContext(t *testing.T) {
	chunks := []retrieval.ScoredChunk{
		scored("Bonds pay fixed coupons.", 0.9),
		scored("Duration measures rate sensitivity.", 0.8),
	}

	msgs := Compose("Should I buy bonds?", chunks, nil)
	content := msgs[1].Content

	if !strings.Contains(content, "[Reference Context]") {
		t.Error("missing [Reference Context] header")
	}
	first := strings.Index(content, "Bonds pay fixed coupons.")
	second := strings.Index(content, "Duration measures rate sensitivity.")
	if first < 0 || second < 0 || first > second {
		t.Errorf("chunks missing or out of order in %q", content)
	}
	if !strings.HasSuffix(content, "Should I buy bonds?") {
		t.Errorf("query not last in %q", content)
	}
}

func TestCompose_FactsSortedByKey(t *testing.T) {
	facts := map[string]string{
		"risk_tolerance": "moderate",
		"cash":           "10000",
		"horizon_years":  "12",
	}

	msgs := Compose("How should I allocate?", nil, facts)
	content := msgs[1].Content

	if !strings.Contains(content, "[Portfolio Facts]") {
		t.Fatal("missing [Portfolio Facts] header")
	}
	cash := strings.Index(content, "cash: 10000")
	horizon := strings.Index(content, "horizon_years: 12")
	risk := strings.Index(content, "risk_tolerance: moderate")
	if cash < 0 || horizon < 0 || risk < 0 {
		t.Fatalf("facts missing from %q", content)
	}
	if !(cash < horizon && horizon < risk) {
		t.Errorf("facts not sorted by key in %q", content)
	}
}

func TestCompose_OmitsEmptySections(t *testing.T) {
	msgs := Compose("hello", nil, map[string]string{})
	content := msgs[1].Content

	if strings.Contains(content, "[Reference Context]") {
		t.Error("empty context section rendered")
	}
	if strings.Contains(content, "[Portfolio Facts]") {
		t.Error("empty facts section rendered")
	}
}

func TestCompose_DropsLowestScoringOverBudget(t *testing.T) {
	big := strings.Repeat("x", maxContextTokens*charsPerToken-10)
	chunks := []retrieval.ScoredChunk{
		scored(big, 0.9),
		scored("low scoring tail chunk", 0.2),
	}

	msgs := Compose("q", chunks, nil)
	content := msgs[1].Content

	if !strings.Contains(content, big) {
		t.Error("highest-scoring chunk was dropped")
	}
	if strings.Contains(content, "low scoring tail chunk") {
		t.Error("lowest-scoring chunk survived over budget")
	}
}

func TestCompose_SystemInstructionIsStable(t *testing.T) {
	a := Compose("one", nil, nil)
	b := Compose("two", nil, nil)
	if a[0].Content != b[0].Content {
		t.Error("system instruction varies between calls")
	}
	if a[0].Content == "" {
		t.Error("system instruction is empty")
	}
}
