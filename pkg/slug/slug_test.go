package slug_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/levelqueue/pkg/slug"
)

func TestMake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		opts  []slug.Option
		want  string
	}{
		{name: "simple", input: "Hello World", want: "hello-world"},
		{name: "punctuation", input: "Hello, World!", want: "hello-world"},
		{name: "digits", input: "Level 42", want: "level-42"},
		{name: "repeated spaces", input: "Too    Many   Spaces", want: "too-many-spaces"},
		{name: "leading and trailing", input: "  --Trim Me--  ", want: "trim-me"},
		{name: "diacritics", input: "Café Crème Über", want: "cafe-creme-uber"},
		{name: "only symbols", input: "!@#$%^&*()", want: ""},
		{name: "empty", input: "", want: ""},
		{name: "non latin dropped", input: "уровень 1", want: "1"},
		{name: "custom separator", input: "a b c", opts: []slug.Option{slug.Separator("_")}, want: "a_b_c"},
		{name: "max length cuts on rune", input: "abcdef", opts: []slug.Option{slug.MaxLength(4)}, want: "abcd"},
		{name: "max length drops dangling separator", input: "abc def", opts: []slug.Option{slug.MaxLength(4)}, want: "abc"},
		{name: "zero disables cap", input: strings.Repeat("a", 100), opts: []slug.Option{slug.MaxLength(0)}, want: strings.Repeat("a", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, slug.Make(tt.input, tt.opts...))
		})
	}
}

func TestMake_DefaultMaxLength(t *testing.T) {
	t.Parallel()

	got := slug.Make(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, len(got), slug.DefaultMaxLength)
	assert.False(t, strings.HasSuffix(got, "-"))
}

func TestPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "bob/my-first-level", slug.Path("Bob", "My First Level"))
	assert.Equal(t, "first-steps", slug.Path("!!!", "First Steps"))
	assert.Equal(t, "", slug.Path())
}
