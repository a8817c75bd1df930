package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"

	"ncval/internal/cache"
	"ncval/internal/config"
	"ncval/internal/ncval/styles"
	"ncval/internal/ui/colorize"
	"ncval/internal/validator"
)

type viewMode int

const (
	viewReport viewMode = iota
	viewViolations
	viewListing
)

type violationItem struct {
	v    validator.Violation
	addr uint32
}

func (i violationItem) FilterValue() string {
	return fmt.Sprintf("%x %s %s", i.addr, i.v.Kind, i.v.Detail)
}

type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(violationItem)
	if !ok {
		return
	}

	indicator := " "
	addrStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	if index == m.Index() {
		indicator = ">"
		addrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	}
	kindStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	fmt.Fprintf(w, " %s  %s  %s  %s",
		indicator,
		addrStyle.Render(fmt.Sprintf("%08x", i.addr)),
		kindStyle.Render(i.v.Kind.String()),
		i.v.Detail)
}

type model struct {
	viewport      viewport.Model
	violations    list.Model
	listing       viewport.Model
	spinner       spinner.Model
	mode          viewMode
	in            *input
	cfg           *config.Config
	validator     *validator.Validator
	cache         *cache.Cache
	report        *validator.Report
	validating    bool
	err           error
	listingLines  []string
	listingOffset map[int]int // region offset -> listing line
	width         int
	height        int
}

type reportMsg struct {
	in     *input
	report *validator.Report
	err    error
}

func validateCmd(in *input, cfg *config.Config, v *validator.Validator, c *cache.Cache) tea.Cmd {
	return func() tea.Msg {
		return reportMsg{in: in, report: c.Validate(v, in.region(cfg))}
	}
}

// revalidateCmd reads path again and validates it. Unchanged images are
// served from the cache.
func revalidateCmd(path string, cfg *config.Config, v *validator.Validator, c *cache.Cache) tea.Cmd {
	return func() tea.Msg {
		in, err := loadInput(path, cfg)
		if err != nil {
			return reportMsg{err: err}
		}
		return validateCmd(in, cfg, v, c)()
	}
}

func newModel(in *input, cfg *config.Config, v *validator.Validator, c *cache.Cache) model {
	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(24)

	lp := viewport.New()
	lp.SetWidth(80)
	lp.SetHeight(24)

	violations := list.New([]list.Item{}, itemDelegate{}, 80, 24)
	violations.SetShowStatusBar(false)
	violations.SetFilteringEnabled(true)
	violations.Title = "Violations"
	violations.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		MarginLeft(2)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))

	m := model{
		viewport:   vp,
		violations: violations,
		listing:    lp,
		spinner:    s,
		mode:       viewReport,
		in:         in,
		cfg:        cfg,
		validator:  v,
		cache:      c,
		validating: true,
		width:      80,
		height:     24,
	}
	m.updateContent()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		validateCmd(m.in, m.cfg, m.validator, m.cache),
		m.spinner.Tick,
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case reportMsg:
		m.validating = false
		if msg.err != nil {
			m.err = msg.err
			m.updateContent()
			return m, nil
		}
		m.in = msg.in
		m.setReport(msg.report)
		return m, nil

	case spinner.TickMsg:
		if !m.validating {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		m.updateContent()
		return m, cmd

	case tea.WindowSizeMsg:
		if msg.Width != m.width || msg.Height != m.height {
			m.width = msg.Width
			m.height = msg.Height
			m.viewport.SetWidth(msg.Width)
			m.viewport.SetHeight(msg.Height - 2)
			m.listing.SetWidth(msg.Width)
			m.listing.SetHeight(msg.Height - 2)
			m.violations.SetWidth(msg.Width)
			m.violations.SetHeight(msg.Height - 2)
			m.updateContent()
		}

	case tea.KeyMsg:
		// While filtering, the list owns every key but quit.
		filtering := m.mode == viewViolations && m.violations.FilterState() == list.Filtering
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if !filtering {
				return m, tea.Quit
			}
		case "r":
			if !filtering && !m.validating {
				m.validating = true
				m.err = nil
				m.mode = viewReport
				m.updateContent()
				return m, tea.Batch(revalidateCmd(m.in.Path, m.cfg, m.validator, m.cache), m.spinner.Tick)
			}
		case "s":
			if !filtering && m.report != nil {
				m.mode = viewReport
				return m, nil
			}
		case "v":
			if !filtering && m.hasViolations() {
				m.mode = viewViolations
				return m, nil
			}
		case "l":
			if !filtering && m.report != nil {
				m.mode = viewListing
				return m, nil
			}
		case "enter":
			if m.mode == viewViolations && !filtering {
				if item, ok := m.violations.SelectedItem().(violationItem); ok {
					m.mode = viewListing
					m.listing.SetYOffset(max(m.listingOffset[item.v.Offset]-3, 0))
				}
				return m, nil
			}
		case "tab":
			if !filtering && m.report != nil {
				m.mode = m.nextMode()
				return m, nil
			}
		}
	}

	switch m.mode {
	case viewViolations:
		m.violations, cmd = m.violations.Update(msg)
	case viewListing:
		m.listing, cmd = m.listing.Update(msg)
	default:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m model) hasViolations() bool {
	return m.report != nil && len(m.report.Violations) > 0
}

func (m model) nextMode() viewMode {
	switch m.mode {
	case viewReport:
		if m.hasViolations() {
			return viewViolations
		}
		return viewListing
	case viewViolations:
		return viewListing
	default:
		return viewReport
	}
}

func (m *model) setReport(rep *validator.Report) {
	m.report = rep

	items := make([]list.Item, 0, len(rep.Violations))
	for _, v := range rep.Violations {
		items = append(items, violationItem{v: v, addr: m.in.Base + uint32(v.Offset)})
	}
	m.violations.SetItems(items)
	m.violations.Title = fmt.Sprintf("Violations (%d)", len(items))

	m.listingLines = listing(m.in, rep)
	m.listingOffset = make(map[int]int)
	for i, line := range m.listingLines {
		var addr uint32
		if _, err := fmt.Sscanf(line, "%08x:", &addr); err == nil && addr >= m.in.Base {
			off := int(addr - m.in.Base)
			if _, seen := m.listingOffset[off]; !seen {
				m.listingOffset[off] = i
			}
		}
	}
	colored := make([]string, len(m.listingLines))
	for i, line := range m.listingLines {
		colored[i] = colorize.ListingLine(line)
	}
	m.listing.SetContent(strings.Join(colored, "\n"))
	m.updateContent()
}

func (m *model) updateContent() {
	var md string
	if m.report == nil {
		md = fmt.Sprintf("# ncval\n\n```\n; %s (%s)\n; %s\n```\n\n%s Validating %d bytes...",
			m.in.Path, m.in.Kind, m.in.Digest, m.spinner.View(), len(m.in.Code))
	} else {
		md = markdownReport(m.in, m.validator.Fingerprint(), m.report, false)
		if m.validating {
			md = fmt.Sprintf("%s Revalidating...\n\n", m.spinner.View()) + md
		}
	}
	if m.err != nil {
		md = fmt.Sprintf("**Error:** %v\n\n", m.err) + md
	}
	width := m.width
	if width == 0 {
		width = 80
	}
	m.viewport.SetContent(strings.TrimSuffix(styles.Render(md, width-2), "\n"))
}

func (m model) View() string {
	var content string
	switch m.mode {
	case viewViolations:
		content = m.violations.View()
	case viewListing:
		content = m.listing.View()
	default:
		content = m.viewport.View()
	}

	var menu string
	switch {
	case m.report == nil:
		menu = " Q: quit "
	case m.mode == viewViolations:
		menu = " Enter: show in listing • S: summary • L: listing • R: revalidate • Q: quit "
	case m.hasViolations():
		menu = " S: summary • V: violations • L: listing • R: revalidate • Tab: cycle • Q: quit "
	default:
		menu = " S: summary • L: listing • R: revalidate • Tab: cycle • Q: quit "
	}

	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)

	return content + "\n" + menuStyle.Render(menu)
}
