package styles

import (
	"strings"
	"testing"

	"ncval/internal/ui/colorize"
)

func TestRender(t *testing.T) {
	md := "# Verdict\n\n**reject**: 2 violations\n\n```armasm\nbx lr\n```\n"
	out := colorize.StripANSI(Render(md, 60))
	for _, want := range []string{"Verdict", "reject", "2 violations", "bx lr"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered report %q does not contain %q", out, want)
		}
	}
}

func TestCodeBlockTheme(t *testing.T) {
	if got := GetMarkdownStyle().CodeBlock.Theme; got != colorize.DisasmDark.Name {
		t.Errorf("code block theme = %q, want %q", got, colorize.DisasmDark.Name)
	}
}
