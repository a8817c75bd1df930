package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"ncval/internal/cache"
	"ncval/internal/config"
	"ncval/internal/ncval/log"
	"ncval/internal/ncval/styles"
	"ncval/internal/ui/colorize"
)

// ErrRejected is returned when at least one validated image is unsafe.
var ErrRejected = errors.New("rejected")

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ncval [file]",
		Short: "Static sandbox validator for untrusted ARM code",
		Long: `ncval decides, without running it, whether a raw A32 code image or the
executable segment of an ARM ELF file obeys the sandbox rules: fixed-size
bundles, masked memory and branch addresses, and no forbidden instructions.`,
		Example: `
# Validate a raw code image loaded at 0x20000
ncval code.bin

# Validate an ELF image and print the annotated listing
ncval --full nexe.elf

# Machine-readable result
ncval --json --base 0x40000 code.bin
  `,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			debug, _ := cmd.Flags().GetBool("debug")
			log.Setup(debug)
		},
		RunE: runValidate,
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "Config file (default $"+config.EnvConfig+")")
	pf.Uint32("base", 0, "Load address of raw images")
	pf.Int("bundle-size", 0, "Bundle size in bytes")
	pf.Uint32("data-mask", 0, "Bits that must be clear in data addresses")
	pf.Uint32("code-mask", 0, "Bits that must be clear in indirect branch targets")
	pf.StringSlice("trampoline", nil, "Permitted out-of-region branch target (repeatable)")
	pf.BoolP("json", "j", false, "Output results as JSON")
	pf.BoolP("debug", "d", false, "Debug")

	root.Flags().BoolP("no-tui", "n", false, "Show summary without TUI")
	root.Flags().BoolP("full", "f", false, "Show the annotated listing (implies --no-tui)")

	root.AddCommand(newRunCmd(), newTableCmd(), newSchemaCmd())
	return root
}

// loadConfig reads the config file and applies explicitly set flags over it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("base") {
		cfg.Base, _ = flags.GetUint32("base")
	}
	if flags.Changed("bundle-size") {
		cfg.BundleSize, _ = flags.GetInt("bundle-size")
	}
	if flags.Changed("data-mask") {
		cfg.DataMask, _ = flags.GetUint32("data-mask")
	}
	if flags.Changed("code-mask") {
		cfg.CodeMask, _ = flags.GetUint32("code-mask")
	}
	if flags.Changed("trampoline") {
		addrs, _ := flags.GetStringSlice("trampoline")
		cfg.Trampolines = cfg.Trampolines[:0]
		for _, s := range addrs {
			a, err := strconv.ParseUint(s, 0, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid trampoline %q: %w", s, err)
			}
			cfg.Trampolines = append(cfg.Trampolines, uint32(a))
		}
	}
	if f := flags.Lookup("workers"); f != nil && f.Changed {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	noTUI, _ := cmd.Flags().GetBool("no-tui")
	full, _ := cmd.Flags().GetBool("full")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// --full implies --no-tui, and so does piped output.
	out := cmd.OutOrStdout()
	tty := isTerminal(out)
	if full || jsonOutput || !tty {
		noTUI = true
	}

	v, err := cfg.NewValidator()
	if err != nil {
		return err
	}
	c, err := cache.New(cfg.CacheSize)
	if err != nil {
		return err
	}
	in, err := loadInput(args[0], cfg)
	if err != nil {
		return err
	}
	slog.Debug("Validating", "file", in.Path, "kind", in.Kind, "base", fmt.Sprintf("%#x", in.Base), "size", len(in.Code))

	if !noTUI {
		m := newModel(in, cfg, v, c)
		program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		final, err := program.Run()
		if err != nil {
			slog.Error("TUI run error", "error", err)
			return fmt.Errorf("TUI error: %w", err)
		}
		if fm, ok := final.(model); ok && fm.report != nil && !fm.report.Accepted {
			return fmt.Errorf("%s: %w", in.Path, ErrRejected)
		}
		return nil
	}

	rep := c.Validate(v, in.region(cfg))
	switch {
	case jsonOutput:
		if err := writeJSON(out, newJSONOutput(in, v.Fingerprint(), rep)); err != nil {
			return err
		}
	case tty:
		fmt.Fprint(out, styles.Render(markdownReport(in, v.Fingerprint(), rep, full), 100))
	default:
		printPlain(out, markdownReport(in, v.Fingerprint(), rep, full))
	}

	if !rep.Accepted {
		slog.Debug("Rejected", "file", in.Path, "violations", len(rep.Violations))
		return fmt.Errorf("%s: %w with %d violations", in.Path, ErrRejected, len(rep.Violations))
	}
	return nil
}

// printPlain writes the markdown report, colouring code block lines when
// colour is enabled.
func printPlain(w io.Writer, md string) {
	inCode := false
	for _, line := range strings.Split(strings.TrimSuffix(md, "\n"), "\n") {
		if strings.HasPrefix(line, "```") {
			inCode = !inCode
		} else if inCode {
			line = colorize.ListingLine(line)
		}
		fmt.Fprintln(w, line)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

func Execute() {
	root := NewRootCmd()

	// Bypass fang's rendering for scripted use: --no-tui, --full, --json or
	// piped output.
	plain := !term.IsTerminal(os.Stdout.Fd())
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--no-tui", "-n", "--full", "-f", "--json", "-j":
			plain = true
		}
	}
	defer log.Close()

	var err error
	if plain {
		err = root.Execute()
		if err != nil && !errors.Is(err, ErrRejected) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	} else {
		err = fang.Execute(
			context.Background(),
			root,
			fang.WithNotifySignal(os.Interrupt),
		)
	}
	if err != nil {
		log.Close()
		os.Exit(1)
	}
}
