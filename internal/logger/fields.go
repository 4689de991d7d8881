package logger

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/prep-assistant/internal/textutil"
)

const (
	// FieldCategory is the structured log field key for the query classification.
	FieldCategory = "query_category"
	// FieldQuery is the structured log field key for a truncated query preview.
	FieldQuery = "query_preview"
	// FieldSession is the structured log field key for a chat session id.
	FieldSession = "session_id"

	queryPreviewLength = 80
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
// A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// QueryFields describes a user query without logging it in full.
func QueryFields(category, query string) []zap.Field {
	return StringFields(
		StringField{Key: FieldCategory, Value: category},
		StringField{Key: FieldQuery, Value: textutil.TruncateForLog(query, queryPreviewLength)},
	)
}
