// Package ui renders command results for the terminal.
//
// Output is styled with lipgloss when the writer is a color terminal and
// degrades to plain text otherwise, so the same functions serve pipes,
// log files and tests.
package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/imamik/quickhost/internal/provisioning"
)

// Printer writes rendered results to one writer.
type Printer struct {
	w  io.Writer
	st styles
}

// NewPrinter returns a printer for w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, st: newStyles(lipgloss.NewRenderer(w))}
}

func (p *Printer) printf(format string, v ...any) {
	_, _ = fmt.Fprintf(p.w, format, v...)
}

// Title prints a bold heading line.
func (p *Printer) Title(format string, v ...any) {
	p.printf("%s\n", p.st.title.Render(fmt.Sprintf(format, v...)))
}

func (p *Printer) section(name string) {
	p.printf("\n%s\n", p.st.section.Render(name))
}

// field prints one aligned "label value" line. Empty values print as a dim dash.
func (p *Printer) field(label, value string) {
	if value == "" {
		value = p.st.dim.Render("-")
	}
	p.printf("  %s%s\n", p.st.label.Render(label), value)
}

func (p *Printer) status(ok bool, okText, badText string) string {
	if ok {
		return p.st.ready.Render(okText)
	}
	return p.st.failed.Render(badText)
}

// Report prints one line per step and a closing verdict.
func (p *Printer) Report(name string, r *provisioning.Report) {
	if r == nil {
		return
	}
	for _, s := range r.Steps {
		var mark, detail string
		switch {
		case s.Skipped:
			mark = p.st.dim.Render(skipMark)
			detail = p.st.dim.Render("skipped")
		case s.Err != nil:
			mark = p.st.failed.Render(crossMark)
			detail = s.Err.Error()
		case !s.OK:
			mark = p.st.warning.Render(warnMark)
			detail = "finished with warnings"
		default:
			mark = p.st.ready.Render(checkMark)
			detail = p.st.dim.Render(s.Duration.Round(time.Millisecond).String())
		}
		p.printf("%s %-24s %s\n", mark, s.Name, detail)
	}

	switch {
	case r.Err() != nil:
		p.printf("%s\n", p.st.failed.Render(name+" failed"))
	case !r.OK():
		p.printf("%s\n", p.st.warning.Render(name+" finished with warnings"))
	default:
		p.printf("%s\n", p.st.ready.Render(name+" done"))
	}
}

// Apps prints the list-all table.
func (p *Printer) Apps(region string, apps []string) {
	if len(apps) == 0 {
		p.printf("no running apps in %s\n", region)
		return
	}
	table := p.table("App", "Hosts")
	for _, entry := range apps {
		name, count := splitAppEntry(entry)
		table.Append([]string{name, count})
	}
	table.Render()
}

// splitAppEntry undoes the "name (n)" form list-all uses for n > 1.
func splitAppEntry(entry string) (string, string) {
	name, rest, found := strings.Cut(entry, " (")
	if !found {
		return entry, "1"
	}
	return name, strings.TrimSuffix(rest, ")")
}

// Lines prints each line indented, or a dim placeholder when there are none.
func (p *Printer) Lines(lines []string, empty string) {
	if len(lines) == 0 {
		p.printf("  %s\n", p.st.dim.Render(empty))
		return
	}
	for _, l := range lines {
		p.printf("  %s\n", l)
	}
}

// Warn prints a highlighted warning line.
func (p *Printer) Warn(format string, v ...any) {
	p.printf("%s\n", p.st.warning.Render(fmt.Sprintf(format, v...)))
}

func (p *Printer) table(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(p.w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}
