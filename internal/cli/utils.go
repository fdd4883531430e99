// Package cli provides CLI output helpers for langchat.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/LangChat/ai-tutorials/internal/models"
	"github.com/LangChat/ai-tutorials/internal/search"
	"github.com/LangChat/ai-tutorials/internal/vecmath"
	"github.com/LangChat/ai-tutorials/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// snippetLen bounds document and candidate text in text output.
const snippetLen = 160

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// Similarity is the comparison of two texts.
type Similarity struct {
	A         string  `json:"a"`
	B         string  `json:"b"`
	Cosine    float64 `json:"cosine_similarity"`
	Euclidean float64 `json:"euclidean_distance"`
}

// RankedCandidate is one candidate text with its similarity to the query.
type RankedCandidate struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Ranking is the outcome of ranking candidate texts against a query.
type Ranking struct {
	Query       string            `json:"query"`
	MostSimilar RankedCandidate   `json:"most_similar"`
	TopK        []RankedCandidate `json:"top_k"`
}

// NewRanking pairs similarity results with the candidate texts they index.
func NewRanking(query string, candidates []string, best vecmath.SimilarityResult, top []vecmath.SimilarityResult) *Ranking {
	r := &Ranking{
		Query:       query,
		MostSimilar: RankedCandidate{Index: best.Index, Text: candidates[best.Index], Score: best.Score},
		TopK:        make([]RankedCandidate, len(top)),
	}
	for i, res := range top {
		r.TopK[i] = RankedCandidate{Index: res.Index, Text: candidates[res.Index], Score: res.Score}
	}
	return r
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSimilarity writes a two-text comparison to w in the given format.
func WriteSimilarity(w io.Writer, s *Similarity, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	_, err := fmt.Fprintf(w, "cosine_similarity:   %.4f\neuclidean_distance:  %.4f\n", s.Cosine, s.Euclidean)
	return err
}

// WriteRanking writes a ranking to w in the given format.
func WriteRanking(w io.Writer, r *Ranking, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	fmt.Fprintf(w, "Query: %s\n\n", r.Query)
	fmt.Fprintf(w, "Most similar: [%d] %.4f  %s\n\n", r.MostSimilar.Index, r.MostSimilar.Score, search.Highlight(r.MostSimilar.Text, snippetLen))
	fmt.Fprintf(w, "Top %d:\n", len(r.TopK))
	for i, c := range r.TopK {
		if _, err := fmt.Fprintf(w, "%3d. [%d] %.4f  %s\n", i+1, c.Index, c.Score, search.Highlight(c.Text, snippetLen)); err != nil {
			return err
		}
	}
	return nil
}

// WriteRagResult writes a RAG answer and its sources to w. In text mode the
// prompt context is printed only when showContext is set; JSON always
// carries it.
func WriteRagResult(w io.Writer, res *models.RagQueryResult, format OutputFormat, showContext bool) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "%s\n", res.Answer)
	if err := WriteSources(w, res.RetrievedDocuments); err != nil {
		return err
	}
	if showContext && res.Context != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "--- Context ---")
		if _, err := fmt.Fprint(w, res.Context); err != nil {
			return err
		}
	}
	return nil
}

// WriteSources writes the numbered titles and snippets of docs, preceded by
// a blank line. Nothing is written for no documents.
func WriteSources(w io.Writer, docs []*models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, doc := range docs {
		if _, err := fmt.Fprintf(w, "  [%d] %s (%s)\n      %s\n", i+1, doc.Title, doc.ID, search.Highlight(doc.Content, snippetLen)); err != nil {
			return err
		}
	}
	return nil
}

// WriteDocument writes a one-line summary of an indexed document.
func WriteDocument(w io.Writer, doc *models.Document, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, doc)
	}
	_, err := fmt.Fprintf(w, "Document indexed: %s  %s\n", doc.ID, utils.TruncateWords(utils.SingleLine(doc.Title), 12))
	return err
}
