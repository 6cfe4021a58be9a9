package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared by the traversal, the filters and the AI clients.
const (
	FieldProvider   = "ai_provider"
	FieldModel      = "ai_model"
	FieldCompanyURL = "company_url"
	FieldJobURL     = "job_url"
	FieldJobTitle   = "job_title"
	FieldUserID     = "user_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts pairs into zap fields. Blank keys or values are
// dropped, so callers can pass optional context without checks.
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

// WithFields attaches fields to logger. A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields describes the AI provider and model.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// CompanyFields identifies the company page being processed.
func CompanyFields(url string) []zap.Field {
	return StringFields(StringField{Key: FieldCompanyURL, Value: url})
}

// UserFields scopes a logger to the listing site user the run acts for.
func UserFields(id string) []zap.Field {
	return StringFields(StringField{Key: FieldUserID, Value: id})
}

// JobFields identifies a job link. The company url is added when known.
func JobFields(companyURL, title, url string) []zap.Field {
	return StringFields(
		StringField{Key: FieldCompanyURL, Value: companyURL},
		StringField{Key: FieldJobTitle, Value: title},
		StringField{Key: FieldJobURL, Value: url},
	)
}
