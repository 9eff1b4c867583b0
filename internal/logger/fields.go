package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldPlatform is the structured log field key for the chat platform.
	FieldPlatform = "platform"
	// FieldUser is the structured log field key for the platform user id.
	FieldUser = "user_id"
	// FieldStage is the structured log field key for the conversation stage.
	FieldStage = "stage"
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// If the logger is nil or no fields are supplied, the input logger is returned
// unchanged, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// ConversationFields returns the standard fields identifying one conversation.
func ConversationFields(platform, userID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldPlatform, Value: platform},
		StringField{Key: FieldUser, Value: userID},
	)
}

// WithConversation attaches conversation identity fields to the provided logger.
// A nil logger yields a no-op logger to avoid panics.
func WithConversation(logger *zap.Logger, platform, userID string) *zap.Logger {
	return WithFields(logger, ConversationFields(platform, userID)...)
}

// ModelFields returns standard zap fields describing the AI provider and model.
// Empty values are ignored to keep log entries compact when information is missing.
func ModelFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithModel attaches the AI provider and model fields to the provided logger.
func WithModel(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, ModelFields(provider, model)...)
}
