package usecases

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"corag/internal/domain/entities"
	"corag/internal/domain/ports"
	"corag/internal/store"
)

// Prompts for the two answering modes. When retrieval finds nothing above
// the similarity threshold the model is still asked to produce a streamed
// reply, just from the fallback prompt instead of tenant content.
const (
	groundedSystemPrompt = "You are an assistant that answers questions strictly from the provided context. " +
		"If the context does not contain the answer, say you do not know. " +
		"Never use knowledge from outside the context."

	fallbackSystemPrompt = "You are an assistant that could not find any relevant information for the " +
		"user's question. Apologize briefly and ask the user to rephrase their question."

	fallbackUserPrompt = "Kindly ask me to rephrase my question"
)

// AskUseCase answers a tenant's question over their own documents: embed
// the question, retrieve similar chunks, stream a grounded completion.
type AskUseCase struct {
	embedder  ports.Embedder
	retriever *store.Retriever
	generator ports.Generator
	topK      int
	logger    *zap.Logger
}

// NewAskUseCase creates an AskUseCase with injected dependencies. topK <= 0
// uses the retriever's default.
func NewAskUseCase(
	embedder ports.Embedder,
	retriever *store.Retriever,
	generator ports.Generator,
	topK int,
	logger *zap.Logger,
) *AskUseCase {
	return &AskUseCase{
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// Ask runs the retrieval-augmented answering flow and returns a token
// stream. Failures before generation starts (embedding, retrieval) are
// returned as errors; failures mid-stream arrive as a terminal token with
// Err set. The channel is closed after the terminal token.
func (uc *AskUseCase) Ask(ctx context.Context, tenantKey, question string) (<-chan ports.StreamToken, error) {
	vector, err := uc.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	results, err := uc.retriever.Search(ctx, tenantKey, vector, uc.topK)
	if err != nil {
		return nil, err
	}

	systemPrompt, userPrompt := groundedSystemPrompt, buildGroundedPrompt(question, results)
	if len(results) == 0 {
		systemPrompt, userPrompt = fallbackSystemPrompt, fallbackUserPrompt
	}
	uc.logger.Debug("answering question",
		zap.Int("matches", len(results)), zap.Bool("grounded", len(results) > 0))

	src, err := uc.generator.Stream(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	out := make(chan ports.StreamToken, 64)
	go func() {
		defer close(out)
		for token := range src {
			select {
			case out <- token:
			case <-ctx.Done():
				return
			}
			if token.Done || token.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

// buildGroundedPrompt appends the retrieved chunk contents to the question
// so the model answers from tenant documents only.
func buildGroundedPrompt(question string, results []entities.ScoredChunk) string {
	var b strings.Builder
	b.WriteString(question)
	b.WriteString("\n\nContext:\n")
	for _, res := range results {
		b.WriteString(res.Record.Content)
		b.WriteString("\n")
	}
	return b.String()
}
