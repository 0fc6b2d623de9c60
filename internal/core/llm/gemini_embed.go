package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/contexta-pipeline/internal/core"
)

// maxBatchRequests is the per-call limit of BatchEmbedContents.
const maxBatchRequests = 100

type GeminiEmbedder struct {
	client *genai.Client
	info   core.EmbeddingModelInfo
}

func NewGeminiEmbedder(ctx context.Context, apiKey string, info core.EmbeddingModelInfo) (*GeminiEmbedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if info.ModelID == "" {
		info.ModelID = "text-embedding-004"
	}
	return &GeminiEmbedder{client: cl, info: info}, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiEmbedder) ModelInfo() core.EmbeddingModelInfo { return g.info }

// EmbedTexts embeds texts through EmbeddingBatch, splitting into requests of at most 100.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, task core.EmbeddingTask, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := g.client.EmbeddingModel(g.info.ModelID)
	em.TaskType = taskType(task)

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchRequests {
		end := min(start+maxBatchRequests, len(texts))

		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}

		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini batch embed: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini batch embed: got %d embeddings for %d texts", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

func taskType(task core.EmbeddingTask) genai.TaskType {
	if task == core.EmbedQuery {
		return genai.TaskTypeRetrievalQuery
	}
	return genai.TaskTypeRetrievalDocument
}

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)
