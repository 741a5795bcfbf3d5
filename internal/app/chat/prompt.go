package chat

import (
	"slices"
	"strings"

	"github.com/PabloGalante/docchat/internal/domain"
)

// NoDocumentsAnswer is returned, without calling the model, when the
// session has no indexed chunks matching the query.
const NoDocumentsAnswer = "I couldn't find any relevant documents for this session. Please upload a PDF first."

// UnknownSource labels chunks stored without a source filename.
const UnknownSource = "Unknown"

const ragTemplate = `You are a helpful retail document assistant.
Answer the user's question using ONLY the context provided below.
If the answer is not in the context, say "I don't have enough information in the uploaded documents to answer this question."

Context:
{context}

Question: {question}

Answer:`

// BuildPrompt joins the chunk texts in retrieval order and fills the template.
func BuildPrompt(question string, chunks []domain.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}

	r := strings.NewReplacer(
		"{context}", strings.Join(parts, "\n\n"),
		"{question}", question,
	)
	return r.Replace(ragTemplate)
}

// Sources returns the distinct source filenames of chunks, sorted.
func Sources(chunks []domain.Chunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		src := c.Source
		if src == "" {
			src = UnknownSource
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	slices.Sort(out)
	return out
}
