// Package display renders pipeline progress on the terminal.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/mailcd/internal/agent"
	"github.com/Iron-Ham/mailcd/internal/env"
	"github.com/Iron-Ham/mailcd/internal/orchestrator"
)

// Color modes accepted by display.color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

var (
	primaryColor = lipgloss.Color("#A78BFA")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#F87171")
	mutedColor   = lipgloss.Color("#9CA3AF")

	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
)

// ColorEnabled decides whether output to f is colored. In auto mode color
// is used only on a terminal and when NO_COLOR is unset.
func ColorEnabled(mode string, f *os.File) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" || f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Printer writes run progress as plain lines. It implements
// orchestrator.Observer and is safe for concurrent use.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	color   bool
	verbose bool
}

var _ orchestrator.Observer = (*Printer)(nil)

// NewPrinter creates a Printer. In verbose mode composed environments and
// the output of successful steps are printed too.
func NewPrinter(out io.Writer, color, verbose bool) *Printer {
	return &Printer{out: out, color: color, verbose: verbose}
}

func (p *Printer) render(style lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return style.Render(text)
}

func (p *Printer) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func scope(stage string) string {
	if stage == "" {
		return "pipeline"
	}
	return stage
}

// Section prints a banner for a part of the run.
func (p *Printer) Section(title string) {
	p.println(p.render(sectionStyle, "==> "+title))
}

// PackageDownloaded prints a resolved inbox slot.
func (p *Printer) PackageDownloaded(_ string, pkg orchestrator.Package) {
	p.println(fmt.Sprintf("  %s %s %s",
		p.render(successStyle, "↓"),
		pkg.Slot,
		p.render(mutedStyle, fmt.Sprintf("%s@%s -> %s", pkg.StorageID, ShortHash(pkg.Hash), pkg.RelPath)),
	))
}

// EnvironmentComposed prints the stage variables in verbose mode.
func (p *Printer) EnvironmentComposed(_ string, vars *env.Vars) {
	if !p.verbose {
		return
	}
	for _, pair := range vars.Pairs() {
		p.println(p.render(mutedStyle, "  "+pair))
	}
}

// StepFinished prints one step status line. The output of a failed step is
// always printed; the output of a successful one only in verbose mode.
func (p *Printer) StepFinished(_ string, result agent.StepResult) {
	elapsed := p.render(mutedStyle, "("+FormatDuration(result.Duration)+")")
	if result.Succeeded() {
		p.println(fmt.Sprintf("  %s %s %s", p.render(successStyle, "✓"), result.Step, elapsed))
		if p.verbose {
			p.printOutput(result)
		}
		return
	}
	p.println(fmt.Sprintf("  %s %s %s %s",
		p.render(errorStyle, "✗"),
		result.Step,
		p.render(errorStyle, fmt.Sprintf("exit code %d", result.ExitCode)),
		elapsed,
	))
	p.printOutput(result)
}

func (p *Printer) printOutput(result agent.StepResult) {
	for _, text := range []string{result.Stdout, result.Stderr} {
		text = strings.TrimRight(text, "\n")
		if text == "" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			p.println("    " + line)
		}
	}
}

// PackagePublished prints a package added to the store.
func (p *Printer) PackagePublished(_ string, pub orchestrator.Published) {
	p.println(fmt.Sprintf("  %s %s %s",
		p.render(successStyle, "↑"),
		pub.StorageID,
		p.render(mutedStyle, fmt.Sprintf("%s (%d files)", ShortHash(pub.Hash), len(pub.Files))),
	))
}

// Notice prints a warning that does not stop the run.
func (p *Printer) Notice(stage, msg string) {
	p.println(fmt.Sprintf("  %s %s", p.render(warningStyle, "! "+scope(stage)+":"), msg))
}

// Summary prints the closing line of a build.
func (p *Printer) Summary(result *orchestrator.Result, elapsed time.Duration) {
	if result == nil {
		return
	}
	failed := result.FailedSteps()
	status := p.render(successStyle, "build finished")
	if failed > 0 {
		status = p.render(errorStyle, fmt.Sprintf("build finished with %d failed step(s)", failed))
	}
	p.println(fmt.Sprintf("%s %s", status, p.render(mutedStyle, fmt.Sprintf("in %s, %d stage(s), %d package(s) published",
		FormatDuration(elapsed), len(result.Stages), countPublished(result)))))
}

// Error prints a failure message.
func (p *Printer) Error(msg string) {
	p.println(p.render(errorStyle, "error: ") + msg)
}

func countPublished(result *orchestrator.Result) int {
	n := len(result.Published)
	for _, s := range result.Stages {
		n += len(s.Published)
	}
	return n
}

// ShortHash abbreviates a package hash for display.
func ShortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// FormatDuration formats d with a precision that suits its size.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Truncate(time.Second).String()
	}
}
