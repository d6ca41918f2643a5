// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/pdiddy/eduscout/internal/genai"
	"github.com/pdiddy/eduscout/pkg/types"
)

type mockCompleter struct {
	out string
	err error
}

func (m *mockCompleter) Complete(_ context.Context, _ genai.Request) (string, error) {
	return m.out, m.err
}

func testCfg() types.QueryConfig {
	return types.QueryConfig{
		MaxQueries: 3,
		LocalizationKeywords: map[string]string{
			"id": "kursus lengkap",
			"vi": "khóa học đầy đủ",
		},
	}
}

func testReq() types.SearchRequest {
	return types.SearchRequest{Country: "ID", Grade: "Grade 1", Subject: "Mathematics"}
}

func TestLanguageFor(t *testing.T) {
	tests := []struct {
		country string
		code    string
	}{
		{"ID", "id"},
		{"id", "id"},
		{"VN", "vi"},
		{"EG", "ar"},
		{"ZZ", "en"}, // unknown falls back to English
		{"", "en"},
	}
	for _, tt := range tests {
		if got := LanguageFor(tt.country); got.Code != tt.code {
			t.Errorf("LanguageFor(%q).Code = %q, want %q", tt.country, got.Code, tt.code)
		}
	}
}

func TestGenerateUsesModelOutput(t *testing.T) {
	c := &mockCompleter{out: "matematika kelas 1 kursus lengkap\nplaylist matematika SD kelas 1\n"}
	g := NewGenerator(c, testCfg(), types.GenAIConfig{}, zap.NewNop())

	queries := g.Generate(context.Background(), testReq())
	if len(queries) != 2 {
		t.Fatalf("len(queries) = %d, want 2", len(queries))
	}
	if queries[0] != "matematika kelas 1 kursus lengkap" {
		t.Errorf("queries[0] = %q", queries[0])
	}
}

func TestGenerateCapsAtMaxQueries(t *testing.T) {
	c := &mockCompleter{out: "a satu\nb dua\nc tiga\nd empat\ne lima"}
	g := NewGenerator(c, testCfg(), types.GenAIConfig{}, zap.NewNop())

	queries := g.Generate(context.Background(), testReq())
	if len(queries) != 3 {
		t.Errorf("len(queries) = %d, want 3 (MaxQueries)", len(queries))
	}
}

func TestGenerateFallsBackOnError(t *testing.T) {
	c := &mockCompleter{err: errors.New("model down")}
	g := NewGenerator(c, testCfg(), types.GenAIConfig{}, zap.NewNop())

	queries := g.Generate(context.Background(), testReq())
	if len(queries) != 1 {
		t.Fatalf("len(queries) = %d, want 1", len(queries))
	}
	want := "Mathematics Grade 1 kursus lengkap"
	if queries[0] != want {
		t.Errorf("fallback query = %q, want %q", queries[0], want)
	}
}

func TestGenerateFallsBackOnDegenerateOutput(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"empty", ""},
		{"whitespace", "  \n\t\n"},
		{"punctuation only", "---\n...\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(&mockCompleter{out: tt.out}, testCfg(), types.GenAIConfig{}, zap.NewNop())
			queries := g.Generate(context.Background(), testReq())
			if len(queries) != 1 {
				t.Fatalf("len(queries) = %d, want 1 fallback query", len(queries))
			}
		})
	}
}

func TestGenerateNilCompleterUsesTemplate(t *testing.T) {
	g := NewGenerator(nil, testCfg(), types.GenAIConfig{}, zap.NewNop())
	queries := g.Generate(context.Background(), testReq())
	if len(queries) != 1 {
		t.Fatalf("len(queries) = %d, want 1", len(queries))
	}
}

func TestTemplateUnknownLanguageKeyword(t *testing.T) {
	g := NewGenerator(nil, testCfg(), types.GenAIConfig{}, zap.NewNop())
	req := types.SearchRequest{Country: "FR", Grade: "Grade 2", Subject: "Science"}

	queries := g.Generate(context.Background(), req)
	want := "Science Grade 2 full course"
	if queries[0] != want {
		t.Errorf("template = %q, want %q", queries[0], want)
	}
}

func TestTemplateIncludesSemester(t *testing.T) {
	g := NewGenerator(nil, testCfg(), types.GenAIConfig{}, zap.NewNop())
	req := testReq()
	req.Semester = "Semester 2"

	queries := g.Generate(context.Background(), req)
	want := "Mathematics Grade 1 Semester 2 kursus lengkap"
	if queries[0] != want {
		t.Errorf("template = %q, want %q", queries[0], want)
	}
}

func TestParseQueryLinesStripsDecoration(t *testing.T) {
	out := "1. matematika kelas 1\n- \"kelas satu matematika\"\n* playlist matematika\n"
	queries := parseQueryLines(out, 5)
	if len(queries) != 3 {
		t.Fatalf("len(queries) = %d, want 3", len(queries))
	}
	if queries[0] != "matematika kelas 1" {
		t.Errorf("queries[0] = %q", queries[0])
	}
	if queries[1] != "kelas satu matematika" {
		t.Errorf("queries[1] = %q", queries[1])
	}
}

func TestGenerateIsPure(t *testing.T) {
	// Same input + same config must produce the same output.
	g := NewGenerator(nil, testCfg(), types.GenAIConfig{}, zap.NewNop())
	a := g.Generate(context.Background(), testReq())
	b := g.Generate(context.Background(), testReq())
	if a[0] != b[0] {
		t.Errorf("Generate not deterministic: %q vs %q", a[0], b[0])
	}
}
