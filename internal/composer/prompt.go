package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paperdesk/advisor/internal/ollama"
	"github.com/paperdesk/advisor/internal/retrieval"
)

// systemInstruction frames every advisory exchange. It rides in the system
// role so user text can't displace it.
const systemInstruction = `You are a prudent investment advisor. Ground your answer in the reference context when it is provided, and say so plainly when the context does not cover the question. Explain trade-offs in clear language, avoid promises of returns, and remind the user that all investing carries risk. Keep answers under four paragraphs.`

const (
	// maxContextTokens bounds the reference block so the prompt leaves the
	// model room to answer. Token count is approximated at charsPerToken.
	maxContextTokens = 1500
	charsPerToken    = 4
)

// Compose assembles the chat messages for an advisory query. Retrieved
// chunks become a [Reference Context] block, portfolio facts a [Portfolio
// Facts] block; either section is omitted when empty. Chunks that would
// blow the context budget are dropped lowest-scoring first.
func Compose(query string, chunks []retrieval.ScoredChunk, facts map[string]string) []ollama.Message {
	var b strings.Builder

	if kept := fitBudget(chunks); len(kept) > 0 {
		b.WriteString("[Reference Context]\n")
		for _, c := range kept {
			b.WriteString(c.Chunk.Text)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(facts) > 0 {
		b.WriteString("[Portfolio Facts]\n")
		keys := make([]string, 0, len(facts))
		for k := range facts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, facts[k])
		}
		b.WriteString("\n")
	}

	b.WriteString(query)

	return []ollama.Message{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: b.String()},
	}
}

// fitBudget keeps the highest-scoring chunks whose combined length fits the
// context budget, preserving the retrieval order of the survivors.
func fitBudget(chunks []retrieval.ScoredChunk) []retrieval.ScoredChunk {
	budget := maxContextTokens * charsPerToken

	total := 0
	for _, c := range chunks {
		total += len(c.Chunk.Text) + 1
	}

	kept := chunks
	for len(kept) > 0 && total > budget {
		// Retrieval order is descending by score, so the last chunk is
		// the cheapest to lose.
		last := kept[len(kept)-1]
		total -= len(last.Chunk.Text) + 1
		kept = kept[:len(kept)-1]
	}
	return kept
}
