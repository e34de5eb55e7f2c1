package ports

import (
	"context"

	"NewsDigest/internal/domain"
)

// Corpus is the keyed similarity-search collection of headlines.
type Corpus interface {
	Query(ctx context.Context, text string, k int) ([]domain.SearchResult, error)
	// Replace swaps the whole corpus; readers keep seeing the old one until it completes.
	Replace(ctx context.Context, docs []domain.CorpusDocument) error
	Count(ctx context.Context) (int, error)
}

// Embedder turns texts into embedding vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ContentFetcher retrieves cleaned article prose for a URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// OutputSchema requests schema-validated JSON output from the model.
type OutputSchema struct {
	Name   string
	Schema map[string]any
}

// CompletionRequest is one language-model call.
type CompletionRequest struct {
	Instructions string
	Input        string
	Schema       *OutputSchema
}

// LanguageModel produces text, or JSON when a schema is given.
type LanguageModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Email is a single outbound HTML message.
type Email struct {
	Subject   string
	HTMLBody  string
	Recipient string
}

// SendReceipt is the provider's answer to a send request.
type SendReceipt struct {
	StatusCode int
	Body       string
}

// EmailSender dispatches HTML email.
type EmailSender interface {
	Send(ctx context.Context, email Email) (SendReceipt, error)
}

// HeadlineSource pulls a snapshot of current news items.
type HeadlineSource interface {
	Name() string
	TopHeadlines(ctx context.Context) ([]domain.NewsItem, error)
}

// RunRecorder persists run outcomes for audit.
type RunRecorder interface {
	Record(ctx context.Context, run domain.RunRecord) error
	ListByRecipient(ctx context.Context, recipient string, limit int) ([]domain.RunRecord, error)
}

// Notifier posts short operator alerts.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Add(spec string, job func()) error
	Start()
	Stop(ctx context.Context) error
}
