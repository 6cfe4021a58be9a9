package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

type fakeModel struct {
	prompt string
	reply  string
	err    error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if len(messages) > 0 && len(messages[0].Parts) > 0 {
		if text, ok := messages[0].Parts[0].(llms.TextContent); ok {
			f.prompt = text.Text
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

type fakeEmbedding struct {
	vectors [][]float32
	err     error
	texts   []string
}

func (f *fakeEmbedding) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.texts = texts
	return f.vectors, f.err
}

func TestGenerateContentJoinsSystemPrompt(t *testing.T) {
	model := &fakeModel{reply: "  Dear team  "}
	p := &Provider{backend: BackendOpenAI, model: model, logger: zap.NewNop()}

	out, err := p.GenerateContent(context.Background(), "be brief", "write a letter")
	require.NoError(t, err)
	assert.Equal(t, "Dear team", out)
	assert.Equal(t, "be brief\n\nwrite a letter", model.prompt)
}

func TestGenerateContentErrors(t *testing.T) {
	p := &Provider{backend: BackendOpenAI, model: &fakeModel{err: errors.New("down")}, logger: zap.NewNop()}
	_, err := p.GenerateContent(context.Background(), "", "hello")
	assert.Error(t, err)

	p.model = &fakeModel{reply: "   "}
	_, err = p.GenerateContent(context.Background(), "", "hello")
	assert.Error(t, err)

	_, err = p.GenerateContent(context.Background(), "", " ")
	assert.Error(t, err)
}

func TestEmbed(t *testing.T) {
	emb := &fakeEmbedding{vectors: [][]float32{{1, 2, 3}}}
	p := &Provider{backend: BackendOpenAI, embedder: emb, embeddingModel: "text-embedding-3-small"}

	vec, err := p.Embed(context.Background(), "Go developer")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
	assert.Equal(t, []string{"Go developer"}, emb.texts)
	assert.Equal(t, "text-embedding-3-small", p.EmbeddingModel())

	p.embedder = &fakeEmbedding{}
	vec, err = p.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, vec)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: BackendOpenAI}, nil)
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Backend: "bedrock", APIKey: "k"}, nil)
	assert.Error(t, err)

	p, err := New(context.Background(), Config{Backend: BackendOpenAI, APIKey: "k", BaseURL: "http://localhost:1234/v1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendOpenAI, p.Name())
	assert.Equal(t, defaultOpenAIEmbeddingModel, p.EmbeddingModel())
}
