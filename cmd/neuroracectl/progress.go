package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"neurorace/pkg/neurorace"
)

// progress reports finished generations. On a terminal it redraws a single
// status line, otherwise it writes one key=value line per generation.
type progress struct {
	w           io.Writer
	total       int
	interactive bool
	drawn       bool
}

func newProgress(w io.Writer, total int) *progress {
	interactive := false
	if f, ok := w.(*os.File); ok {
		fd := f.Fd()
		interactive = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return &progress{w: w, total: total, interactive: interactive}
}

func (p *progress) Generation(s neurorace.GenerationSummary) {
	if !p.interactive {
		fmt.Fprintf(p.w, "generation=%d max_fitness=%.6f mean_fitness=%.6f diversity=%.6f ticks=%d\n",
			s.Generation, s.MaxFitness, s.MeanFitness, s.Diversity, s.Ticks)
		return
	}
	total := "?"
	if p.total > 0 {
		total = humanize.Comma(int64(p.total))
	}
	fmt.Fprintf(p.w, "\r\033[Kgeneration %s/%s  max %s  mean %s  diversity %s  ticks %s",
		humanize.Comma(int64(s.Generation)), total,
		humanize.FormatFloat("#,###.##", s.MaxFitness),
		humanize.FormatFloat("#,###.##", s.MeanFitness),
		humanize.FormatFloat("#,###.####", s.Diversity),
		humanize.Comma(int64(s.Ticks)))
	p.drawn = true
}

// Done terminates an in-place status line.
func (p *progress) Done() {
	if p.interactive && p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}
