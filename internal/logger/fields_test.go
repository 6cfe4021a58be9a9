package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldHelpers(t *testing.T) {
	cases := []struct {
		name   string
		fields []zap.Field
		want   map[string]string
	}{
		{
			name: "string fields trim and drop blanks",
			fields: StringFields(
				StringField{Key: "  stage  ", Value: "  title  "},
				StringField{Key: "ignored", Value: "   "},
				StringField{Key: "   ", Value: "empty key"},
			),
			want: map[string]string{"stage": "title"},
		},
		{
			name:   "no fields",
			fields: StringFields(),
			want:   map[string]string{},
		},
		{
			name:   "provider and model",
			fields: CommonFields("  gemini  ", "gemini-2.5-flash"),
			want:   map[string]string{FieldProvider: "gemini", FieldModel: "gemini-2.5-flash"},
		},
		{
			name:   "blank provider and model",
			fields: CommonFields("", " "),
			want:   map[string]string{},
		},
		{
			name:   "company",
			fields: CompanyFields("https://www.workatastartup.com/companies/acme"),
			want:   map[string]string{FieldCompanyURL: "https://www.workatastartup.com/companies/acme"},
		},
		{
			name:   "job with company",
			fields: JobFields("https://x/companies/acme", " Backend Engineer ", "https://x/jobs/1"),
			want: map[string]string{
				FieldCompanyURL: "https://x/companies/acme",
				FieldJobTitle:   "Backend Engineer",
				FieldJobURL:     "https://x/jobs/1",
			},
		},
		{
			name:   "job without company or title",
			fields: JobFields("", "", "https://x/jobs/2"),
			want:   map[string]string{FieldJobURL: "https://x/jobs/2"},
		},
		{
			name:   "user",
			fields: UserFields("u-42"),
			want:   map[string]string{FieldUserID: "u-42"},
		},
		{
			name:   "unknown user",
			fields: UserFields(""),
			want:   map[string]string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if len(tc.fields) != len(tc.want) {
				t.Fatalf("expected %d fields, got %d: %+v", len(tc.want), len(tc.fields), tc.fields)
			}
			for _, f := range tc.fields {
				if want, ok := tc.want[f.Key]; !ok || f.String != want {
					t.Fatalf("unexpected field %s=%q", f.Key, f.String)
				}
			}
		})
	}
}

func TestWithFieldsAttachesContext(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	log := WithCommonFields(zap.New(core), "openai", "gpt-4o-mini")
	log = WithFields(log, JobFields("", "Platform Engineer", "https://x/jobs/9")...)
	log.Info("drafting")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	for key, want := range map[string]string{
		FieldProvider: "openai",
		FieldModel:    "gpt-4o-mini",
		FieldJobTitle: "Platform Engineer",
		FieldJobURL:   "https://x/jobs/9",
	} {
		if ctx[key] != want {
			t.Fatalf("expected %s=%q, got %v", key, want, ctx[key])
		}
	}
}

func TestWithFieldsNilLogger(t *testing.T) {
	if WithFields(nil) == nil {
		t.Fatal("expected a no-op logger")
	}
	// must not panic
	WithCommonFields(nil, "gemini", "m").Info("dropped")
}
