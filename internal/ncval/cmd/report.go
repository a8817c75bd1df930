package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"ncval/internal/arm"
	"ncval/internal/disasm"
	"ncval/internal/validator"
)

// JSONOutput is the machine-readable result for one file.
type JSONOutput struct {
	File   string `json:"file"`
	Kind   string `json:"kind"`
	Digest string `json:"digest"`
	Target string `json:"target"`
	Base   string `json:"base"`
	Cached bool   `json:"cached,omitempty"`
	*validator.Report
	// Writes maps instruction addresses to the registers they write. It is
	// only filled for accepted images.
	Writes map[string][]string `json:"writes,omitempty"`
}

func newJSONOutput(in *input, fingerprint string, rep *validator.Report) JSONOutput {
	o := JSONOutput{
		File:   in.Path,
		Kind:   in.Kind,
		Digest: in.Digest.String(),
		Target: fingerprint,
		Base:   fmt.Sprintf("%#x", in.Base),
		Report: rep,
	}
	if rep.Accepted {
		sets := rep.WriteSets()
		o.Writes = make(map[string][]string, len(sets))
		for off, regs := range sets {
			var names []string
			regs.Each(func(r validator.Register) {
				names = append(names, arm.RegisterName(r))
			})
			o.Writes[fmt.Sprintf("%#x", in.Base+uint32(off))] = names
		}
	}
	return o
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// markdownReport renders the summary shown by the TUI and --no-tui. With
// full set it appends the annotated listing.
func markdownReport(in *input, fingerprint string, rep *validator.Report, full bool) string {
	var b strings.Builder
	b.WriteString("# ncval\n\n```\n")
	fmt.Fprintf(&b, "; %s (%s)\n", in.Path, in.Kind)
	fmt.Fprintf(&b, "; %s\n", in.Digest)
	fmt.Fprintf(&b, "; target %s\n", fingerprint)
	fmt.Fprintf(&b, "; base %#x, %d bytes", in.Base, len(in.Code))
	if in.Section != "" {
		fmt.Fprintf(&b, " from %s", in.Section)
	}
	b.WriteString("\n```\n\n")

	fmt.Fprintf(&b, "## Verdict: %s\n\n", rep.Verdict())
	if rep.Accepted {
		fmt.Fprintf(&b, "%d instructions, %d branch targets.\n", len(rep.Instructions), len(rep.Targets))
	} else {
		fmt.Fprintf(&b, "%d violations (%s).\n", len(rep.Violations), kindSummary(rep))
	}

	if len(rep.Violations) > 0 {
		b.WriteString("\n## Violations\n\n")
		b.WriteString("| Offset | Address | Kind | Detail |\n|---|---|---|---|\n")
		for _, v := range rep.Violations {
			fmt.Fprintf(&b, "| %#x | %#06x | %s | %s |\n",
				v.Offset, in.Base+uint32(v.Offset), v.Kind, strings.ReplaceAll(v.Detail, "|", `\|`))
		}
	}

	if full {
		b.WriteString("\n## Listing\n\n```armasm\n")
		for _, line := range listing(in, rep) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteString("```\n")
	}
	return b.String()
}

// kindSummary returns "2 UnsafeMemoryReference, 1 BundleCrossing" in kind
// order.
func kindSummary(rep *validator.Report) string {
	counts := rep.CountByKind()
	kinds := make([]validator.Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%d %s", counts[k], k)
	}
	return strings.Join(parts, ", ")
}

const annotationIndent = "          "

// listing disassembles the input and interleaves symbol labels and
// violations at the offsets they were reported.
func listing(in *input, rep *validator.Report) []string {
	pending := make(map[int][]validator.Violation)
	for _, v := range rep.Violations {
		pending[v.Offset] = append(pending[v.Offset], v)
	}
	annotate := func(lines []string, off int) []string {
		for _, v := range pending[off] {
			lines = append(lines, fmt.Sprintf("%s; !! %s: %s", annotationIndent, v.Kind, v.Detail))
		}
		delete(pending, off)
		return lines
	}

	var lines []string
	for _, inst := range disasm.Disassemble(in.Code, in.Base) {
		if s, ok := in.Symbols.At(uint64(inst.Addr)); ok && s.Addr == uint64(inst.Addr) {
			lines = append(lines, "", s.Label()+":")
		}
		lines = append(lines, inst.String())
		lines = annotate(lines, inst.Offset)
	}

	// Violations at offsets the listing never reached, such as the end of a
	// truncated region.
	rest := make([]int, 0, len(pending))
	for off := range pending {
		rest = append(rest, off)
	}
	sort.Ints(rest)
	for _, off := range rest {
		lines = append(lines, fmt.Sprintf("%08x:", in.Base+uint32(off)))
		lines = annotate(lines, off)
	}
	return lines
}

// summaryLine is the one-line batch result for a file.
func summaryLine(in *input, rep *validator.Report) string {
	if rep.Accepted {
		return fmt.Sprintf("accept  %s  (%d bytes at %#x, %s)", in.Path, len(in.Code), in.Base, in.Digest.Short())
	}
	first := rep.Violations[0]
	return fmt.Sprintf("reject  %s  %d violations, first at %#x: %s",
		in.Path, len(rep.Violations), in.Base+uint32(first.Offset), first.Kind)
}
