package core

import "context"

// EmbeddingModelInfo describes the model behind an EmbeddingProvider.
type EmbeddingModelInfo struct {
	ModelID        string `json:"embedding_model_id"`
	Size           int    `json:"embedding_size"`
	MaxInputLength int    `json:"max_input_length"`
}

// EmbeddingTask tells the model which side of a retrieval pair it embeds.
type EmbeddingTask int

const (
	EmbedDocument EmbeddingTask = iota
	EmbedQuery
)

// EmbeddingProvider turns texts into vectors, one per input and in input order.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, task EmbeddingTask, texts []string) ([][]float32, error)
	ModelInfo() EmbeddingModelInfo
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
