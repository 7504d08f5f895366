package observ

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	errColor    = color.New(color.FgRed, color.Bold)
	labelColor  = color.New(color.Faint)
)

// Render writes a human-readable run report. Counters are grouped with
// thousands separators.
func Render(w io.Writer, r *RunReport) error {
	p := message.NewPrinter(language.English)
	rw := &reportWriter{w: w}

	rw.printf("%s\n", headerColor.Sprintf("%s on %s", r.Scenario, r.Executor))
	rw.field("parker", r.Parker)
	rw.field("clock", r.Clock)
	if r.Fuzz {
		rw.field("fuzz", fmt.Sprintf("seed %d", r.Seed))
	}
	rw.field("wall", r.Wall.Round(time.Microsecond).String())
	if r.VirtualMs > 0 {
		rw.field("virtual", fmt.Sprintf("%d ms", r.VirtualMs))
	}

	c := r.Counters
	rw.printf("%s\n", headerColor.Sprint("counters"))
	rw.field("spawns", p.Sprintf("%d", c.Spawns))
	rw.field("polls", p.Sprintf("%d", c.Polls))
	rw.field("claims", p.Sprintf("%d (%.2f polls/claim, max %d)", c.Claims, r.PollsPerClaim(), c.MaxBatch))
	rw.field("wakes", p.Sprintf("%d", c.Wakes))
	rw.field("requeues", p.Sprintf("%d", c.Requeues))
	rw.field("parks", p.Sprintf("%d", c.Parks))
	rw.field("timers", p.Sprintf("%d fired", c.TimerFires))
	rw.field("done", p.Sprintf("%d of %d (%d live)", c.Completions, c.Spawns, c.Live))
	if rate := r.PollsPerSecond(); rate > 0 {
		rw.field("rate", p.Sprintf("%.0f polls/s", rate))
	}

	if len(r.Metrics) > 0 {
		rw.printf("%s\n", headerColor.Sprint("scenario"))
		for _, k := range slices.Sorted(maps.Keys(r.Metrics)) {
			rw.field(k, p.Sprintf("%d", r.Metrics[k]))
		}
	}

	if len(r.Phases.Phases) > 0 {
		rw.printf("%s\n", headerColor.Sprint("phases"))
		for _, ph := range r.Phases.Phases {
			line := fmt.Sprintf("%9.3f ms", ph.DurationMS)
			if ph.Note != "" {
				line += "  " + ph.Note
			}
			rw.field(ph.Name, line)
		}
	}
	if r.Err != "" {
		rw.printf("%s %s\n", errColor.Sprint("error:"), r.Err)
	}
	return rw.err
}

type reportWriter struct {
	w   io.Writer
	err error
}

func (rw *reportWriter) printf(format string, args ...any) {
	if rw.err != nil {
		return
	}
	_, rw.err = fmt.Fprintf(rw.w, format, args...)
}

func (rw *reportWriter) field(label, value string) {
	rw.printf("  %s %s\n", labelColor.Sprintf("%-10s", label), value)
}

// Aggregate summarises several runs of the same scenario.
type Aggregate struct {
	Scenario string
	Runs     int
	Failed   int
	Polls    uint64
	WallMin  time.Duration
	WallMax  time.Duration
	WallP50  time.Duration
}

// Summarize folds reports into an Aggregate. Reports from other scenarios
// are counted too; callers group them beforehand.
func Summarize(reports []*RunReport) Aggregate {
	var agg Aggregate
	if len(reports) == 0 {
		return agg
	}
	agg.Scenario = reports[0].Scenario
	walls := make([]time.Duration, 0, len(reports))
	for _, r := range reports {
		agg.Runs++
		if r.Err != "" {
			agg.Failed++
		}
		agg.Polls += r.Counters.Polls
		walls = append(walls, r.Wall)
	}
	slices.Sort(walls)
	agg.WallMin = walls[0]
	agg.WallMax = walls[len(walls)-1]
	agg.WallP50 = walls[len(walls)/2]
	return agg
}

// RenderAggregate writes one summary line per aggregate.
func RenderAggregate(w io.Writer, agg Aggregate) error {
	p := message.NewPrinter(language.English)
	status := color.GreenString("ok")
	if agg.Failed > 0 {
		status = errColor.Sprintf("%d failed", agg.Failed)
	}
	_, err := p.Fprintf(w, "%-10s runs=%d polls=%d wall min=%v p50=%v max=%v %s\n",
		agg.Scenario, agg.Runs, agg.Polls,
		agg.WallMin.Round(time.Microsecond), agg.WallP50.Round(time.Microsecond), agg.WallMax.Round(time.Microsecond),
		status)
	return err
}
