package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// fakeModel answers by schema: plan, select, or free-text writer.
type fakeModel struct {
	mu       sync.Mutex
	plan     string
	planErr  error
	selectFn func(input string) string
	selErr   error
	writeFn  func(input string) string
	writeErr error
	calls    []ports.CompletionRequest
}

func (m *fakeModel) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	switch {
	case req.Schema != nil && req.Schema.Name == planSchema.Name:
		return m.plan, m.planErr
	case req.Schema != nil && req.Schema.Name == headlinesSchema.Name:
		if m.selErr != nil {
			return "", m.selErr
		}
		return m.selectFn(req.Input), nil
	default:
		if m.writeErr != nil {
			return "", m.writeErr
		}
		return m.writeFn(req.Input), nil
	}
}

func (m *fakeModel) callsFor(name string) []ports.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ports.CompletionRequest
	for _, c := range m.calls {
		switch {
		case c.Schema != nil && c.Schema.Name == name:
			out = append(out, c)
		case c.Schema == nil && name == "":
			out = append(out, c)
		}
	}
	return out
}

func staticSelect(raw string) func(string) string {
	return func(string) string { return raw }
}

// fakeCorpus returns canned results per query text.
type fakeCorpus struct {
	mu       sync.Mutex
	results  map[string][]domain.SearchResult
	err      error
	queries  []string
	replaced [][]domain.CorpusDocument
}

func (c *fakeCorpus) Query(_ context.Context, text string, k int) ([]domain.SearchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, text)
	if c.err != nil {
		return nil, c.err
	}
	res := c.results[text]
	if len(res) > k {
		res = res[:k]
	}
	return res, nil
}

func (c *fakeCorpus) Replace(_ context.Context, docs []domain.CorpusDocument) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.replaced = append(c.replaced, docs)
	return nil
}

func (c *fakeCorpus) Count(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replaced) == 0 {
		return 0, nil
	}
	return len(c.replaced[len(c.replaced)-1]), nil
}

// fakeContent serves article text per URL; URLs in fail return an error.
type fakeContent struct {
	mu    sync.Mutex
	texts map[string]string
	fail  map[string]bool
	calls []string
}

func (f *fakeContent) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if f.fail[url] {
		return "", errors.New("connection reset by peer")
	}
	if text, ok := f.texts[url]; ok {
		return text, nil
	}
	return "Full text of " + url, nil
}

func (f *fakeContent) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeSender records emails and answers with a fixed status.
type fakeSender struct {
	mu     sync.Mutex
	status int
	body   string
	err    error
	sent   []ports.Email
}

func (s *fakeSender) Send(_ context.Context, email ports.Email) (ports.SendReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, email)
	if s.err != nil {
		return ports.SendReceipt{}, s.err
	}
	return ports.SendReceipt{StatusCode: s.status, Body: s.body}, nil
}

func (s *fakeSender) emails() []ports.Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Email(nil), s.sent...)
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []domain.RunRecord
}

func (r *fakeRecorder) Record(_ context.Context, run domain.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func (r *fakeRecorder) ListByRecipient(_ context.Context, recipient string, limit int) ([]domain.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RunRecord
	for i := len(r.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.runs[i].Recipient == recipient {
			out = append(out, r.runs[i])
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

// fakeEmbedder returns a one-dimensional vector per text.
type fakeEmbedder struct {
	err   error
	calls int
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

type fakeSnapshot struct {
	items []domain.NewsItem
	err   error
	calls int
}

func (s *fakeSnapshot) Collect(context.Context) ([]domain.NewsItem, error) {
	s.calls++
	return s.items, s.err
}

func result(url, title string) domain.SearchResult {
	return domain.SearchResult{ID: url, Text: title + "\n\nDescription of " + title}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func planJSON(interests map[string][]string, order ...string) string {
	out := `{"interests":[`
	for i, name := range order {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"name":%q,"queries":[`, name)
		for j, q := range interests[name] {
			if j > 0 {
				out += ","
			}
			out += fmt.Sprintf("%q", q)
		}
		out += "]}"
	}
	return out + "]}"
}
