package ingest

import (
	"strings"
	"testing"
)

func TestChunkPages_ShortPageIsSingleChunk(t *testing.T) {
	pages := []Page{{Number: 1, Text: "Diversification spreads risk across assets."}}

	chunks := ChunkPages(pages, 500, 50)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "Diversification spreads risk across assets." {
		t.Errorf("text = %q", chunks[0].Text)
	}
	if chunks[0].Page != 1 || chunks[0].Ordinal != 0 {
		t.Errorf("page = %d ordinal = %d, want 1 and 0", chunks[0].Page, chunks[0].Ordinal)
	}
	if chunks[0].ID == "" {
		t.Error("chunk ID is empty")
	}
}

func TestChunkPages_PacksParagraphsUpToSize(t *testing.T) {
	// Three paragraphs of 40 runes each fit in one 200-rune window.
	para := strings.Repeat("a", 40)
	text := para + "\n\n" + para + "\n\n" + para

	chunks := ChunkPages([]Page{{Number: 1, Text: text}}, 200, 20)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if got := len([]rune(chunks[0].Text)); got != 40*3+2 {
		t.Errorf("chunk length = %d, want %d", got, 40*3+2)
	}
}

func TestChunkPages_OverlapSeedsNextWindow(t *testing.T) {
	first := strings.Repeat("a", 90)
	second := strings.Repeat("b", 80)
	text := first + "\n\n" + second

	chunks := ChunkPages([]Page{{Number: 1, Text: text}}, 100, 10)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Text != first {
		t.Errorf("chunks[0] = %q, want the first paragraph alone", chunks[0].Text)
	}
	// Second window starts with the last 10 runes of the first.
	wantPrefix := strings.Repeat("a", 10)
	if !strings.HasPrefix(chunks[1].Text, wantPrefix) {
		t.Errorf("chunks[1] = %q, want prefix %q", chunks[1].Text, wantPrefix)
	}
	if !strings.HasSuffix(chunks[1].Text, second) {
		t.Errorf("chunks[1] = %q, want suffix of b runes", chunks[1].Text)
	}
}

func TestChunkPages_HardSplitsOversizedParagraph(t *testing.T) {
	text := strings.Repeat("x", 250)

	chunks := ChunkPages([]Page{{Number: 1, Text: text}}, 100, 10)
	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want at least 3", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c.Text)); n > 100 {
			t.Errorf("chunks[%d] length = %d, want <= 100", i, n)
		}
	}
}

func TestChunkPages_OrdinalsSpanPages(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "first page text"},
		{Number: 2, Text: "second page text"},
	}

	chunks := ChunkPages(pages, 500, 50)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Ordinal != 0 || chunks[1].Ordinal != 1 {
		t.Errorf("ordinals = %d, %d, want 0, 1", chunks[0].Ordinal, chunks[1].Ordinal)
	}
	if chunks[0].Page != 1 || chunks[1].Page != 2 {
		t.Errorf("pages = %d, %d, want 1, 2", chunks[0].Page, chunks[1].Page)
	}
}

func TestChunkPages_NormalizesWhitespaceWithinParagraphs(t *testing.T) {
	text := "Interest  rates\naffect\tbond prices."

	chunks := ChunkPages([]Page{{Number: 1, Text: text}}, 500, 50)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "Interest rates affect bond prices." {
		t.Errorf("text = %q", chunks[0].Text)
	}
}

func TestChunkPages_EmptyInput(t *testing.T) {
	if got := ChunkPages(nil, 500, 50); got != nil {
		t.Errorf("ChunkPages(nil) = %v, want nil", got)
	}
	if got := ChunkPages([]Page{{Number: 1, Text: "   \n\n  "}}, 500, 50); got != nil {
		t.Errorf("blank page produced %d chunks, want none", len(got))
	}
}

func TestChunkPages_InvalidSettingsFallBackToDefaults(t *testing.T) {
	text := strings.Repeat("word ", 200)

	chunks := ChunkPages([]Page{{Number: 1, Text: text}}, 0, -1)
	if len(chunks) == 0 {
		t.Fatal("got no chunks")
	}
	for i, c := range chunks {
		if n := len([]rune(c.Text)); n > DefaultChunkSize {
			t.Errorf("chunks[%d] length = %d, want <= %d", i, n, DefaultChunkSize)
		}
	}
}
