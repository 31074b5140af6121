package prompts

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackzampolin/lectern/internal/errs"
)

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("Hello {{.Name}}, {{ .Count }} items, {{.Book.Title}} and {{.Name}} again")
	want := []string{"Book.Title", "Count", "Name"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ExtractVariables() = %v, want %v", got, want)
	}
}

func TestResolver(t *testing.T) {
	newResolver := func() *Resolver {
		r := NewResolver(nil)
		r.Register(EmbeddedPrompt{Key: "greet", Text: "Hello {{.Name}}"})
		return r
	}

	t.Run("embedded default", func(t *testing.T) {
		r := newResolver()
		p, err := r.Resolve("greet", "book-1")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if p.IsOverride {
			t.Error("IsOverride = true, want false")
		}
		if p.Hash != HashText("Hello {{.Name}}") {
			t.Error("hash not computed on register")
		}
		if len(p.Variables) != 1 || p.Variables[0] != "Name" {
			t.Errorf("Variables = %v, want [Name]", p.Variables)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := newResolver().Resolve("nope", "")
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("error = %v, want not found", err)
		}
	})

	t.Run("render", func(t *testing.T) {
		got, err := newResolver().Render("greet", "", struct{ Name string }{"Ada"})
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if got != "Hello Ada" {
			t.Errorf("Render() = %q, want %q", got, "Hello Ada")
		}
	})

	t.Run("book override applies to one book", func(t *testing.T) {
		r := newResolver()
		if _, err := r.SetBookOverride("book-1", "greet", "Hi {{.Name}}!", "shorter"); err != nil {
			t.Fatalf("SetBookOverride() error = %v", err)
		}

		got, _ := r.Render("greet", "book-1", map[string]string{"Name": "Ada"})
		if got != "Hi Ada!" {
			t.Errorf("override Render() = %q", got)
		}
		got, _ = r.Render("greet", "book-2", map[string]string{"Name": "Ada"})
		if got != "Hello Ada" {
			t.Errorf("other book Render() = %q", got)
		}
		if n := len(r.ListBookOverrides("book-1")); n != 1 {
			t.Errorf("ListBookOverrides() len = %d, want 1", n)
		}

		if !r.ClearBookOverride("book-1", "greet") {
			t.Error("ClearBookOverride() = false, want true")
		}
		if r.ClearBookOverride("book-1", "greet") {
			t.Error("second ClearBookOverride() = true, want false")
		}
		p, _ := r.Resolve("greet", "book-1")
		if p.IsOverride {
			t.Error("override still active after clear")
		}
	})

	t.Run("override validation", func(t *testing.T) {
		r := newResolver()
		if _, err := r.SetBookOverride("book-1", "greet", "Hi {{.Name", ""); !errors.Is(err, errs.ErrValidation) {
			t.Errorf("bad template error = %v, want validation", err)
		}
		if _, err := r.SetBookOverride("book-1", "missing", "x", ""); !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("unknown key error = %v, want not found", err)
		}
		if _, err := r.SetBookOverride("", "greet", "x", ""); !errors.Is(err, errs.ErrValidation) {
			t.Errorf("empty book error = %v, want validation", err)
		}
	})

	t.Run("all embedded sorted", func(t *testing.T) {
		r := newResolver()
		r.Register(EmbeddedPrompt{Key: "alpha", Text: "a"})
		all := r.AllEmbedded()
		if len(all) != 2 || all[0].Key != "alpha" {
			t.Errorf("AllEmbedded() = %+v", all)
		}
	})
}
