package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const testModel = "gemini-test"

// scriptedChats answers each Create with the next scripted result.
type scriptedChats struct {
	results []scriptedResult
	calls   []*genai.GenerateContentConfig
	sent    []string
}

type scriptedResult struct {
	text string
	err  error
}

type scriptedChat struct {
	owner  *scriptedChats
	result scriptedResult
}

func (c *scriptedChat) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, p := range parts {
		c.owner.sent = append(c.owner.sent, p.Text)
	}
	if c.result.err != nil {
		return nil, c.result.err
	}
	return textResponse(c.result.text), nil
}

func (s *scriptedChats) Create(_ context.Context, model string, config *genai.GenerateContentConfig, _ []*genai.Content) (chatSession, error) {
	if model != testModel {
		return nil, errors.New("unexpected model " + model)
	}
	if len(s.results) == 0 {
		return nil, errors.New("unexpected call")
	}
	next := s.results[0]
	s.results = s.results[1:]
	s.calls = append(s.calls, config)
	return &scriptedChat{owner: s, result: next}, nil
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func recordSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	orig := sleep
	sleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { sleep = orig })
	return &slept
}

func TestGenerateContentRetries(t *testing.T) {
	internal := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}

	cases := []struct {
		name       string
		results    []scriptedResult
		maxRetries int
		wantText   string
		wantErr    bool
		wantSleeps []time.Duration
	}{
		{
			name:       "temporary error then success",
			results:    []scriptedResult{{err: internal}, {text: "Dear Acme team"}},
			maxRetries: 2,
			wantText:   "Dear Acme team",
			wantSleeps: []time.Duration{baseRetryDelay},
		},
		{
			name:       "retries exhausted",
			results:    []scriptedResult{{err: internal}, {err: internal}},
			maxRetries: 2,
			wantErr:    true,
			wantSleeps: []time.Duration{baseRetryDelay},
		},
		{
			name: "short quota delay is honoured",
			results: []scriptedResult{
				{err: genai.APIError{Code: http.StatusTooManyRequests, Message: "rate limited, retry in 5s"}},
				{text: "ok"},
			},
			maxRetries: 3,
			wantText:   "ok",
			wantSleeps: []time.Duration{5 * time.Second},
		},
		{
			name: "long quota delay is not retried",
			results: []scriptedResult{
				{err: genai.APIError{Code: http.StatusTooManyRequests, Message: "quota exhausted, retry after 60 seconds"}},
			},
			maxRetries: 3,
			wantErr:    true,
		},
		{
			name:       "client error is not retried",
			results:    []scriptedResult{{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}}},
			maxRetries: 3,
			wantErr:    true,
		},
		{
			name:       "zero retries still tries once",
			results:    []scriptedResult{{text: "single"}},
			maxRetries: 0,
			wantText:   "single",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slept := recordSleeps(t)
			chats := &scriptedChats{results: tc.results}
			g := &Generator{chats: chats, model: testModel, maxRetries: tc.maxRetries, logger: zap.NewNop()}

			got, err := g.GenerateContent(context.Background(), "You write cover letters.", "Job: Backend Engineer")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.wantText {
				t.Fatalf("expected %q, got %q", tc.wantText, got)
			}
			if len(chats.results) != 0 {
				t.Fatalf("expected every scripted result to be consumed, %d left", len(chats.results))
			}
			if len(*slept) != len(tc.wantSleeps) {
				t.Fatalf("expected sleeps %v, got %v", tc.wantSleeps, *slept)
			}
			for i := range tc.wantSleeps {
				if (*slept)[i] != tc.wantSleeps[i] {
					t.Fatalf("expected sleeps %v, got %v", tc.wantSleeps, *slept)
				}
			}
		})
	}
}

func TestGenerateContentSystemInstruction(t *testing.T) {
	chats := &scriptedChats{results: []scriptedResult{{text: "a"}, {text: "b"}}}
	g := &Generator{chats: chats, model: testModel, logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), "  persona writer  ", "resume text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := g.GenerateContent(context.Background(), "", "resume text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := chats.calls[0]
	if first == nil || first.SystemInstruction == nil || first.SystemInstruction.Parts[0].Text != "persona writer" {
		t.Fatalf("expected trimmed system instruction, got %+v", first)
	}
	if chats.calls[1] != nil {
		t.Fatalf("expected no config without a system prompt")
	}
	if len(chats.sent) != 2 || chats.sent[0] != "resume text" {
		t.Fatalf("unexpected messages: %v", chats.sent)
	}
}

func TestGenerateContentRejectsEmptyMessage(t *testing.T) {
	g := &Generator{chats: &scriptedChats{}, model: testModel, logger: zap.NewNop()}
	if _, err := g.GenerateContent(context.Background(), "sys", " \n "); err == nil {
		t.Fatal("expected error for empty message")
	}

	var uninitialized *Generator
	if _, err := uninitialized.GenerateContent(context.Background(), "", "msg"); err == nil {
		t.Fatal("expected error for nil generator")
	}
}

func TestResponseText(t *testing.T) {
	got, err := responseText(textResponse(" first ", "", "second"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "first\nsecond" {
		t.Fatalf("unexpected text %q", got)
	}

	if _, err := responseText(textResponse("  ")); err == nil {
		t.Fatal("expected error for blank response")
	}
	if _, err := responseText(nil); err == nil {
		t.Fatal("expected error for nil response")
	}
}

type fakeEmbeddings struct {
	model string
	text  string
	resp  *genai.EmbedContentResponse
	err   error
}

func (f *fakeEmbeddings) EmbedContent(_ context.Context, model string, contents []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.model = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.text = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func TestEmbed(t *testing.T) {
	emb := &fakeEmbeddings{resp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.1, 0.2}}},
	}}
	g := &Generator{embeddings: emb, embeddingModel: defaultEmbeddingModel, logger: zap.NewNop()}

	vector, err := g.Embed(context.Background(), "Senior Backend Engineer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vector) != 2 || vector[1] != 0.2 {
		t.Fatalf("unexpected vector: %v", vector)
	}
	if emb.model != defaultEmbeddingModel || emb.text != "Senior Backend Engineer" {
		t.Fatalf("unexpected request: model=%q text=%q", emb.model, emb.text)
	}
}

func TestEmbedEmptyAndFailing(t *testing.T) {
	g := &Generator{embeddings: &fakeEmbeddings{resp: &genai.EmbedContentResponse{}}, logger: zap.NewNop()}

	vector, err := g.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vector) != 0 {
		t.Fatalf("expected empty vector, got %v", vector)
	}

	g.embeddings = &fakeEmbeddings{err: errors.New("boom")}
	if _, err := g.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error to be returned")
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := map[string]time.Duration{
		"retry in 5s":               5 * time.Second,
		"Retry after 1.5 s please":  1500 * time.Millisecond,
		"please retry after 30s ok": 30 * time.Second,
	}
	for msg, want := range cases {
		got, ok := parseRetryAfter(msg)
		if !ok || got != want {
			t.Fatalf("%q: expected %s, got %s (ok=%v)", msg, want, got, ok)
		}
	}

	if _, ok := parseRetryAfter("try later"); ok {
		t.Fatal("expected no delay without a hint")
	}
}
