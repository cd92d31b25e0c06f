package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"renovateAi/internal/config"
	"renovateAi/internal/conversation"
	"renovateAi/internal/generation"
	"renovateAi/internal/storage"
	"renovateAi/internal/vision"
)

func TestBuildWithoutCredentials(t *testing.T) {
	a, err := Build(context.Background(), config.Default(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &storage.InMemoryStore{}, a.Store)
	assert.Nil(t, a.Analyzer)
	assert.Nil(t, a.Images)
	assert.Equal(t, 2, a.Machine.Policy().ReadinessTurnThreshold)
	assert.Equal(t, 90, int(a.Generator.Policy().AttemptTimeout.Seconds()))

	_, err = a.Orchestrator.GenerateConcepts(context.Background(), generation.Request{
		Photo: vision.Photo{Data: []byte("x"), MIMEType: "image/jpeg"},
	}, 1)
	assert.ErrorIs(t, err, generation.ErrNoConcepts)
	assert.ErrorIs(t, err, vision.ErrCapabilityUnavailable)
}

func TestBuildExtractor(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()

	assert.IsType(t, conversation.KeywordExtractor{}, buildExtractor(ctx, config.AIConfig{}, log))
	assert.IsType(t, conversation.KeywordExtractor{}, buildExtractor(ctx, config.AIConfig{Provider: "openai"}, log))
	assert.IsType(t, &conversation.LLMExtractor{}, buildExtractor(ctx, config.AIConfig{Provider: "openai", OpenAIAPIKey: "k"}, log))
	assert.IsType(t, &conversation.LLMExtractor{}, buildExtractor(ctx, config.AIConfig{Provider: "gemini", GeminiAPIKey: "k"}, log))
	assert.IsType(t, conversation.KeywordExtractor{}, buildExtractor(ctx, config.AIConfig{Provider: "gemini", ServiceAccountJSON: "{"}, log))
}
