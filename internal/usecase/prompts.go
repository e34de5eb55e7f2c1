package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const planInstructions = `You plan semantic searches over today's stored news headlines.

Read the user's description of the news they want and split it into distinct interests.
Interests that are closely related (for example a company and its flagship product) belong together;
unrelated topics are separate interests. Use one interest when the user names a single topic.

For every interest write 1 to 4 short natural-language search queries that capture it, such as
"Google AI" and "AI research at Google" for an interest in Google's AI work.

Return only the JSON object described by the schema.`

const selectInstructions = `You select news headlines for a personalized digest.

You receive the user's preferences, the interests found in them and a list of candidate headlines,
each with its URL. Keep only candidates that clearly match the preferences and drop weak or unrelated
matches. Group the kept headlines into categories, one per distinct interest, with a short
descriptive category name. Merge interests that are closely related. When the user has one interest,
return exactly one category.

Rules:
- Use only URLs from the candidate list and copy them exactly.
- Never invent headlines.
- List each URL at most once across all categories.
- Return an empty categories array when nothing is relevant.

Return only the JSON object described by the schema.`

const writerInstructions = `You write a personalized news digest in Markdown.

You receive news articles with their source URLs and the reader's preferences.

- Summarize each available article in 1 to 3 sentences using only facts from its text.
- Put the articles most relevant to the preferences first.
- Organize the digest with headings (#, ##, ###), bullet lists, bold and italic text.
- After each summary cite the source as *Source: [Publication](URL)*.
- Articles marked UNAVAILABLE could not be retrieved: do not summarize or guess their content.
- Do not copy raw article text, metadata or these instructions into the digest.

Return only the Markdown digest.`

var planSchema = ports.OutputSchema{
	Name: "retrieval_plan",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"interests": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":    map[string]any{"type": "string"},
						"queries": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required":             []string{"name", "queries"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"interests"},
		"additionalProperties": false,
	},
}

var headlinesSchema = ports.OutputSchema{
	Name: "headlines_output",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"categories": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"category": map[string]any{"type": "string"},
						"headlines": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"url":  map[string]any{"type": "string"},
									"text": map[string]any{"type": "string"},
								},
								"required":             []string{"url", "text"},
								"additionalProperties": false,
							},
						},
					},
					"required":             []string{"category", "headlines"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"categories"},
		"additionalProperties": false,
	},
}

const articleSeparator = "\n\n---\n\n"

func buildSelectInput(preferences string, plan retrievalPlan, candidates []domain.SearchResult) string {
	var b strings.Builder
	b.WriteString("User preferences:\n")
	b.WriteString(strings.TrimSpace(preferences))
	b.WriteString("\n\nInterests:\n")
	for _, in := range plan.Interests {
		fmt.Fprintf(&b, "- %s\n", in.Name)
	}
	b.WriteString("\nCandidate headlines:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- url: %s\n  text: %s\n", c.ID, c.Title())
	}
	return b.String()
}

func buildWriterInput(articles []domain.FetchedArticle, preferences string) string {
	blocks := make([]string, 0, len(articles))
	for _, a := range articles {
		if a.Failed() {
			blocks = append(blocks, fmt.Sprintf("%s:\nHeadline: %s\nUNAVAILABLE: %s", a.URL, a.BriefDescription, domain.FailureMarker))
			continue
		}
		blocks = append(blocks, fmt.Sprintf("%s:\nHeadline: %s\n\n%s", a.URL, a.BriefDescription, a.FullText))
	}

	var b strings.Builder
	b.WriteString("News articles:\n\n")
	b.WriteString(strings.Join(blocks, articleSeparator))
	b.WriteString("\n\nReader preferences:\n\n")
	b.WriteString(strings.TrimSpace(preferences))
	b.WriteString("\n\nWrite the digest now: 1-3 sentences per article, headings and lists where useful, ")
	b.WriteString("most relevant articles first, and a source link after every summary.")
	return b.String()
}

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n(.*?)\\n?```$")

// stripCodeFence unwraps output the model put inside a fenced block.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}
