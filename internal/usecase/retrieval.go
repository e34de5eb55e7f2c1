package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const defaultTopK = 5

type retrievalPlan struct {
	Interests []planInterest `json:"interests"`
}

type planInterest struct {
	Name    string   `json:"name"`
	Queries []string `json:"queries"`
}

// queries returns every distinct non-empty query of the plan in order.
func (p retrievalPlan) queries() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, in := range p.Interests {
		for _, q := range in.Queries {
			q = strings.TrimSpace(q)
			key := domain.NormalizeText(q)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, q)
		}
	}
	return out
}

// Retriever turns free-text preferences into a categorized, deduplicated headline set.
type Retriever struct {
	model        ports.LanguageModel
	corpus       ports.Corpus
	topK         int
	queryTimeout time.Duration
	logger       *slog.Logger
}

// NewRetriever wires the model and corpus; topK <= 0 means 5.
func NewRetriever(model ports.LanguageModel, corpus ports.Corpus, topK int, queryTimeout time.Duration, logger *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		model:        model,
		corpus:       corpus,
		topK:         topK,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// Retrieve plans queries, searches the corpus, lets the model select and group
// the candidates and enforces the uniqueness and category rules on the result.
func (r *Retriever) Retrieve(ctx context.Context, preferences string) (domain.HeadlinesOutput, error) {
	preferences = strings.TrimSpace(preferences)
	if preferences == "" {
		return domain.HeadlinesOutput{}, fmt.Errorf("preferences are empty")
	}

	plan, err := r.plan(ctx, preferences)
	if err != nil {
		return domain.HeadlinesOutput{}, err
	}

	// Without usable queries the preferences text is searched as one interest.
	queries := plan.queries()
	singleInterest := len(plan.Interests) == 1
	interestName := preferences
	if len(queries) == 0 {
		queries = []string{preferences}
		singleInterest = true
	} else if len(plan.Interests) == 1 {
		interestName = plan.Interests[0].Name
	}
	r.logger.Debug("retrieval plan", "interests", len(plan.Interests), "queries", len(queries))

	candidates, err := r.search(ctx, queries)
	if err != nil {
		return domain.HeadlinesOutput{}, err
	}
	if len(candidates) == 0 {
		return domain.HeadlinesOutput{}, nil
	}

	selected, err := r.selectHeadlines(ctx, preferences, plan, candidates)
	if err != nil {
		return domain.HeadlinesOutput{}, err
	}

	out := enforceUniqueness(selected, candidates)
	if singleInterest {
		out = mergeCategories(out, interestName)
	}

	r.logger.Debug("retrieval done", "candidates", len(candidates), "categories", len(out.Categories), "headlines", out.Count())
	return out, nil
}

func (r *Retriever) plan(ctx context.Context, preferences string) (retrievalPlan, error) {
	raw, err := r.model.Complete(ctx, ports.CompletionRequest{
		Instructions: planInstructions,
		Input:        preferences,
		Schema:       &planSchema,
	})
	if err != nil {
		return retrievalPlan{}, fmt.Errorf("plan queries: %w", err)
	}

	var plan retrievalPlan
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &plan); err != nil {
		return retrievalPlan{}, fmt.Errorf("%w: retrieval plan: %v", domain.ErrInvalidModelOutput, err)
	}

	interests := plan.Interests[:0]
	for _, in := range plan.Interests {
		in.Name = strings.TrimSpace(in.Name)
		if in.Name == "" && len(in.Queries) == 0 {
			continue
		}
		if in.Name == "" {
			in.Name = strings.TrimSpace(in.Queries[0])
		}
		interests = append(interests, in)
	}
	plan.Interests = interests
	return plan, nil
}

// search runs every query and pools results by URL, first hit wins.
func (r *Retriever) search(ctx context.Context, queries []string) ([]domain.SearchResult, error) {
	seen := map[string]struct{}{}
	var pool []domain.SearchResult
	for _, q := range queries {
		results, err := r.query(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("%w: query %q: %v", domain.ErrCorpusUnavailable, q, err)
		}
		for _, res := range results {
			res.ID = strings.TrimSpace(res.ID)
			if res.ID == "" {
				continue
			}
			if _, ok := seen[res.ID]; ok {
				continue
			}
			seen[res.ID] = struct{}{}
			pool = append(pool, res)
		}
	}
	return pool, nil
}

func (r *Retriever) query(ctx context.Context, text string) ([]domain.SearchResult, error) {
	if r.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
	}
	results, err := r.corpus.Query(ctx, text, r.topK)
	if err != nil {
		return nil, err
	}
	if len(results) > r.topK {
		results = results[:r.topK]
	}
	return results, nil
}

func (r *Retriever) selectHeadlines(ctx context.Context, preferences string, plan retrievalPlan, candidates []domain.SearchResult) (domain.HeadlinesOutput, error) {
	raw, err := r.model.Complete(ctx, ports.CompletionRequest{
		Instructions: selectInstructions,
		Input:        buildSelectInput(preferences, plan, candidates),
		Schema:       &headlinesSchema,
	})
	if err != nil {
		return domain.HeadlinesOutput{}, fmt.Errorf("select headlines: %w", err)
	}
	return parseHeadlinesOutput(raw)
}

// parseHeadlinesOutput decodes and validates the structured selection output.
func parseHeadlinesOutput(raw string) (domain.HeadlinesOutput, error) {
	dec := json.NewDecoder(strings.NewReader(stripCodeFence(raw)))
	dec.DisallowUnknownFields()

	var out domain.HeadlinesOutput
	if err := dec.Decode(&out); err != nil {
		return domain.HeadlinesOutput{}, fmt.Errorf("%w: headlines output: %v", domain.ErrInvalidModelOutput, err)
	}

	for i, c := range out.Categories {
		if strings.TrimSpace(c.Category) == "" {
			return domain.HeadlinesOutput{}, fmt.Errorf("%w: category %d has no name", domain.ErrInvalidModelOutput, i)
		}
		for j, h := range c.Headlines {
			if strings.TrimSpace(h.URL) == "" {
				return domain.HeadlinesOutput{}, fmt.Errorf("%w: headline %d of %q has no url", domain.ErrInvalidModelOutput, j, c.Category)
			}
		}
	}
	return out, nil
}

// enforceUniqueness keeps headlines whose URL came from the candidate pool,
// restores their canonical text and drops repeated URLs or texts run-wide.
func enforceUniqueness(out domain.HeadlinesOutput, candidates []domain.SearchResult) domain.HeadlinesOutput {
	known := make(map[string]domain.SearchResult, len(candidates))
	for _, c := range candidates {
		known[c.ID] = c
	}

	seenURL := map[string]struct{}{}
	seenText := map[string]struct{}{}
	result := domain.HeadlinesOutput{}
	for _, c := range out.Categories {
		category := domain.HeadlineCategory{Category: strings.TrimSpace(c.Category)}
		for _, h := range c.Headlines {
			url := strings.TrimSpace(h.URL)
			res, ok := known[url]
			if !ok {
				continue
			}
			text := res.Title()
			if text == "" {
				text = strings.TrimSpace(h.Text)
			}
			key := domain.NormalizeText(text)
			if _, dup := seenURL[url]; dup {
				continue
			}
			if _, dup := seenText[key]; dup {
				continue
			}
			seenURL[url] = struct{}{}
			seenText[key] = struct{}{}
			category.Headlines = append(category.Headlines, domain.Headline{URL: url, Text: text})
		}
		if len(category.Headlines) > 0 {
			result.Categories = append(result.Categories, category)
		}
	}
	return result
}

// mergeCategories folds every category into one, used when a single interest was found.
func mergeCategories(out domain.HeadlinesOutput, name string) domain.HeadlinesOutput {
	if len(out.Categories) <= 1 {
		return out
	}
	if strings.TrimSpace(name) == "" {
		name = out.Categories[0].Category
	}
	return domain.HeadlinesOutput{Categories: []domain.HeadlineCategory{{
		Category:  name,
		Headlines: out.Flatten(),
	}}}
}
