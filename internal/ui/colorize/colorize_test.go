package colorize

import (
	"strings"
	"testing"

	"github.com/alecthomas/chroma/v2/styles"
)

func TestListingLinePlain(t *testing.T) {
	t.Setenv("NCVAL_NO_COLOR", "1")
	line := "00020000: e3c00103  bic r0, r0, #0xc0000000"
	if got := ListingLine(line); got != line {
		t.Errorf("ListingLine with colour disabled = %q", got)
	}
	if got, err := Assembly("bx lr"); err != nil || got != "bx lr" {
		t.Errorf("Assembly with colour disabled = %q, %v", got, err)
	}
}

func TestListingLine(t *testing.T) {
	t.Setenv("NCVAL_NO_COLOR", "")
	tests := []struct {
		name   string
		line   string
		prefix string
	}{
		{"instruction", "00020000: e3c00103  bic r0, r0, #0xc0000000", gray + "00020000: e3c00103" + reset},
		{"violation", "          ; !! UnsafeMemoryReference: r0", red},
		{"comment", "          ; bundle 2", pink},
		{"blank", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ListingLine(tt.line)
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("ListingLine(%q) = %q, want prefix %q", tt.line, got, tt.prefix)
			}
			if StripANSI(got) != tt.line {
				t.Errorf("StripANSI(ListingLine(%q)) = %q", tt.line, StripANSI(got))
			}
		})
	}
}

func TestStyleRegistered(t *testing.T) {
	if styles.Get("ncval-disasm") != DisasmDark {
		t.Error("listing style is not registered with chroma")
	}
}

func TestIsHex(t *testing.T) {
	for s, want := range map[string]bool{"00020000": true, "DEADbeef": true, "": false, "0x10": false, "  ; x": false} {
		if got := isHex(s); got != want {
			t.Errorf("isHex(%q) = %v", s, got)
		}
	}
}
