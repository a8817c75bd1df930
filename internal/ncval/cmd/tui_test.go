package cmd

import (
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ncval/internal/cache"
	"ncval/internal/config"
	"ncval/internal/ui/colorize"
)

func newTestModel(t *testing.T, code []byte) model {
	t.Helper()
	t.Setenv("NCVAL_NO_COLOR", "1")
	cfg := config.Default()
	v, err := cfg.NewValidator()
	require.NoError(t, err)
	c, err := cache.New(4)
	require.NoError(t, err)
	in, err := loadInput(writeFile(t, "code.bin", code), cfg)
	require.NoError(t, err)
	return newModel(in, cfg, v, c)
}

func TestModelReport(t *testing.T) {
	m := newTestModel(t, words(nop, nop, nop, nop, bxLR))
	assert.Contains(t, colorize.StripANSI(m.View()), "Q: quit")

	msg := validateCmd(m.in, m.cfg, m.validator, m.cache)()
	next, _ := m.Update(msg)
	m = next.(model)

	require.NotNil(t, m.report)
	assert.False(t, m.report.Accepted)
	assert.True(t, m.hasViolations())
	assert.Equal(t, 1, len(m.violations.Items()))

	view := colorize.StripANSI(m.View())
	assert.Contains(t, view, "V: violations")
	assert.Contains(t, view, "reject")

	// The violation at offset 16 maps to the listing line for bx lr.
	line, ok := m.listingOffset[16]
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(m.listingLines[line], "00020010: e12fff1e  bx lr"))

	assert.Equal(t, viewViolations, m.nextMode())
	m.mode = viewViolations
	assert.Equal(t, viewListing, m.nextMode())
	m.mode = viewListing
	assert.Equal(t, viewReport, m.nextMode())
}

func TestModelAccepted(t *testing.T) {
	m := newTestModel(t, safeCode)
	next, _ := m.Update(validateCmd(m.in, m.cfg, m.validator, m.cache)())
	m = next.(model)

	assert.True(t, m.report.Accepted)
	assert.False(t, m.hasViolations())
	assert.Equal(t, viewListing, m.nextMode(), "no violations view for accepted code")
	assert.NotContains(t, colorize.StripANSI(m.View()), "V: violations")
}

func TestModelRevalidate(t *testing.T) {
	m := newTestModel(t, unsafeCode)
	next, _ := m.Update(validateCmd(m.in, m.cfg, m.validator, m.cache)())
	m = next.(model)
	m.mode = viewListing

	next, cmd := m.Update(tea.KeyPressMsg{Code: 'r', Text: "r"})
	m = next.(model)
	require.NotNil(t, cmd)
	assert.True(t, m.validating)
	assert.Equal(t, viewReport, m.mode)
	assert.Contains(t, colorize.StripANSI(m.View()), "Revalidating")

	// Unchanged bytes are served from the cache.
	next, _ = m.Update(revalidateCmd(m.in.Path, m.cfg, m.validator, m.cache)())
	m = next.(model)
	assert.False(t, m.validating)
	assert.False(t, m.report.Accepted)
	assert.Equal(t, uint64(1), m.cache.Stats().Hits)

	// Edited bytes are validated again.
	require.NoError(t, os.WriteFile(m.in.Path, safeCode, 0o644))
	next, _ = m.Update(revalidateCmd(m.in.Path, m.cfg, m.validator, m.cache)())
	m = next.(model)
	assert.True(t, m.report.Accepted)
	assert.Equal(t, cache.Digest(safeCode), m.in.Digest)
	assert.Equal(t, 2, m.cache.Stats().Len)

	// A failed reload keeps the last report.
	require.NoError(t, os.Remove(m.in.Path))
	next, _ = m.Update(revalidateCmd(m.in.Path, m.cfg, m.validator, m.cache)())
	m = next.(model)
	require.Error(t, m.err)
	assert.True(t, m.report.Accepted)
	assert.Contains(t, colorize.StripANSI(m.View()), "Error:")
}

func TestModelSummaryKey(t *testing.T) {
	m := newTestModel(t, safeCode)
	next, _ := m.Update(validateCmd(m.in, m.cfg, m.validator, m.cache)())
	m = next.(model)
	m.mode = viewListing

	next, cmd := m.Update(tea.KeyPressMsg{Code: 's', Text: "s"})
	m = next.(model)
	assert.Nil(t, cmd)
	assert.Equal(t, viewReport, m.mode)
	assert.False(t, m.validating)
}

func TestModelResize(t *testing.T) {
	m := newTestModel(t, safeCode)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(model)
	assert.Equal(t, 120, m.width)
	assert.Equal(t, 38, m.viewport.Height())
}
