package llm

import "context"

type contextKey string

const (
	modelContextKey contextKey = "llm-model-override"
	jsonContextKey  contextKey = "llm-json-response"
)

// WithModel returns a context carrying a preferred model override.
func WithModel(ctx context.Context, model string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	model = normalizeModel(model)
	if model == "" {
		return ctx
	}
	return context.WithValue(ctx, modelContextKey, model)
}

// ModelFromContext returns the model override carried by ctx, if any.
func ModelFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(modelContextKey).(string); ok {
		return normalizeModel(value)
	}
	return ""
}

// WithJSONResponse asks the provider to constrain its reply to a JSON object.
func WithJSONResponse(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, jsonContextKey, true)
}

func jsonFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	on, _ := ctx.Value(jsonContextKey).(bool)
	return on
}
