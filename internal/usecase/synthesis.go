package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const allUnavailableDigest = "# Your News Digest\n\nNone of the articles selected for you could be retrieved today."

// Synthesizer writes the Markdown digest from fetched articles.
type Synthesizer struct {
	model  ports.LanguageModel
	logger *slog.Logger
}

// NewSynthesizer wires the writer model.
func NewSynthesizer(model ports.LanguageModel, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{model: model, logger: logger}
}

// Synthesize summarizes the articles for the given preferences. Articles that
// failed to fetch are never summarized and are listed in a closing section.
func (s *Synthesizer) Synthesize(ctx context.Context, articles []domain.FetchedArticle, preferences string) (domain.Digest, error) {
	failed := domain.CountFailed(articles)

	var body string
	if failed == len(articles) {
		// Nothing to summarize; the model would only have headlines to go on.
		body = allUnavailableDigest
	} else {
		raw, err := s.model.Complete(ctx, ports.CompletionRequest{
			Instructions: writerInstructions,
			Input:        buildWriterInput(articles, preferences),
		})
		if err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrSynthesis, err)
		}
		body = stripCodeFence(raw)
		if body == "" {
			return "", fmt.Errorf("%w: model returned an empty digest", domain.ErrSynthesis)
		}
	}

	s.logger.Debug("digest written", "articles", len(articles), "unavailable", failed, "chars", len(body))
	return domain.Digest(body + unavailableSection(articles)), nil
}

func unavailableSection(articles []domain.FetchedArticle) string {
	var b strings.Builder
	for _, a := range articles {
		if !a.Failed() {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("\n\n### Unavailable articles\n\n")
			b.WriteString("These articles matched your interests but could not be retrieved:\n\n")
		}
		text := strings.TrimSpace(a.BriefDescription)
		if text == "" {
			text = a.URL
		}
		fmt.Fprintf(&b, "- [%s](%s)\n", escapeLinkText(text), a.URL)
	}
	return b.String()
}

var linkTextEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

func escapeLinkText(s string) string {
	return linkTextEscaper.Replace(s)
}
