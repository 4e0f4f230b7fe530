package entity

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
)

var t0 = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func validParams() Params {
	return Params{
		ID:         "p1",
		Type:       TypeProject,
		TitleEN:    "Graph Neural Networks",
		Status:     StatusActive,
		Visibility: "public",
		CreatedAt:  t0,
		UpdatedAt:  t0.Add(time.Hour),
	}
}

func TestNew_Valid(t *testing.T) {
	p := validParams()
	p.Tags = []string{" ML ", "graphs", "ml", ""}

	e, err := New(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID() != "p1" {
		t.Errorf("ID() = %q", e.ID())
	}
	if e.Type() != TypeProject {
		t.Errorf("Type() = %q", e.Type())
	}
	if e.Visibility() != Public {
		t.Errorf("Visibility() = %q", e.Visibility())
	}
	tags := e.Tags()
	if len(tags) != 2 || tags[0] != "graphs" || tags[1] != "ml" {
		t.Errorf("Tags() = %v, want [graphs ml]", tags)
	}
	if !e.HasTag("ML") {
		t.Error("HasTag should be case-insensitive")
	}
	if e.HasTag("quantum") {
		t.Error("HasTag(quantum) should be false")
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		want   string
	}{
		{"empty id", func(p *Params) { p.ID = "" }, "ID is required"},
		{"long id", func(p *Params) { p.ID = strings.Repeat("a", MaxIDLength+1) }, "too long"},
		{"space in id", func(p *Params) { p.ID = "a b" }, "whitespace"},
		{"no title", func(p *Params) { p.TitleEN = "  " }, "at least one title"},
		{"bad type", func(p *Params) { p.Type = "" }, "type"},
		{"bad status", func(p *Params) { p.Status = "in progress" }, "status"},
		{"bad visibility", func(p *Params) { p.Visibility = "secret" }, "visibility"},
		{"missing created", func(p *Params) { p.CreatedAt = time.Time{} }, "created_at"},
		{"updated before created", func(p *Params) { p.UpdatedAt = t0.Add(-time.Hour) }, "updated_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, err := New(p)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, domain.ErrInvalidEntity) {
				t.Errorf("expected ErrInvalidEntity, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	p := validParams()
	p.Visibility = ""
	p.UpdatedAt = time.Time{}
	p.TitleEN = ""
	p.TitleZH = "图神经网络"

	e, err := New(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Visibility() != Private {
		t.Errorf("empty visibility should default to private, got %q", e.Visibility())
	}
	if !e.UpdatedAt().Equal(t0) {
		t.Errorf("UpdatedAt() = %v, want created_at", e.UpdatedAt())
	}
}

func TestTexts(t *testing.T) {
	p := validParams()
	p.BodyZH = "消息传递"
	p.Tags = []string{"b", "a"}
	e, _ := New(p)

	texts := e.Texts()
	var fields []string
	for _, ft := range texts {
		fields = append(fields, string(ft.Field)+"="+ft.Text)
	}
	got := strings.Join(fields, ",")
	want := "title_en=Graph Neural Networks,body_zh=消息传递,tags=a,tags=b"
	if got != want {
		t.Errorf("Texts() = %q, want %q", got, want)
	}
}

func TestEmbeddingText(t *testing.T) {
	p := validParams()
	p.TitleZH = "图神经网络"
	p.BodyEN = "Message passing."
	e, _ := New(p)

	want := "Graph Neural Networks\n图神经网络\nMessage passing."
	if e.EmbeddingText() != want {
		t.Errorf("EmbeddingText() = %q, want %q", e.EmbeddingText(), want)
	}
}

func TestFieldLocale(t *testing.T) {
	if FieldTitleZH.Locale() != LocaleZH || FieldBodyEN.Locale() != LocaleEN || FieldTags.Locale() != LocaleUnd {
		t.Error("unexpected field locales")
	}
}

func TestParams_RoundTrip(t *testing.T) {
	e, _ := New(validParams())
	again, err := New(e.Params())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.ID() != e.ID() || !again.UpdatedAt().Equal(e.UpdatedAt()) || again.Visibility() != e.Visibility() {
		t.Error("Params() did not round-trip")
	}
}
