package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kr/text"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"

	"github.com/apibreak/noregrets/replayer"
)

const (
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiReset  = "\x1b[0m"
)

// reportPrinter renders a []replayer.BreakingPath as a human-readable
// report, column-aligning it, and colorizing it when writing to a real
// terminal.
type reportPrinter struct {
	w     io.Writer
	color bool
}

func newReportPrinter(w io.Writer) *reportPrinter {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &reportPrinter{w: w, color: color}
}

// Print renders every breaking path, plus the diff summary line
// described in SPEC_FULL.md's SUPPLEMENTED FEATURES section.
func (p *reportPrinter) Print(breaking []replayer.BreakingPath) {
	if len(breaking) == 0 {
		fmt.Fprintln(p.w, "no breaking paths found")
		return
	}

	pathCol := 0
	for _, b := range breaking {
		if w := runewidth.StringWidth(b.Path.String()); w > pathCol {
			pathCol = w
		}
	}

	var covariant, contravariant, empty int
	for _, b := range breaking {
		if b.Path.Variance().String() == "covariant" {
			covariant++
		} else {
			contravariant++
		}
		if b.Actual.Tag.String() == "undefined" {
			empty++
		}

		label := runewidth.FillRight(b.Path.String(), pathCol)
		line := fmt.Sprintf("%s  actual=%s required=%s", label, b.Actual, b.Required)
		fmt.Fprintln(p.w, p.colorize(line))
		fmt.Fprint(p.w, text.Indent(b.Reason+"\n", "    "))
	}

	fmt.Fprintf(p.w, "\n%d breaking path(s): %d covariant, %d contravariant, %d hit an undefined site\n",
		len(breaking), covariant, contravariant, empty)
}

func (p *reportPrinter) colorize(line string) string {
	if !p.color {
		return line
	}
	return ansiYellow + line + ansiReset
}

// fatal writes a colorized, single-line error report. Callers pass a
// reportPrinter over os.Stderr for a top-level command failure.
func (p *reportPrinter) fatal(format string, args ...any) {
	fmt.Fprint(p.w, p.colorizeErr(fmt.Sprintf(format, args...)))
}

func (p *reportPrinter) colorizeErr(line string) string {
	if !p.color {
		return line + "\n"
	}
	return ansiRed + line + ansiReset + "\n"
}
