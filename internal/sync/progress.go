package sync

import (
	"io"
	"strconv"

	"github.com/cheggaaa/pb/v3"
)

// Reporter is told about the progress of one batch.
type Reporter interface {
	Start(total int)
	Done(id string, err error)
	Finish()
}

type nopReporter struct{}

func (nopReporter) Start(int)          {}
func (nopReporter) Done(string, error) {}
func (nopReporter) Finish()            {}

// barReporter draws a terminal progress bar for a batch
type barReporter struct {
	w      io.Writer
	bar    *pb.ProgressBar
	failed int
}

// NewBarReporter returns a Reporter drawing a progress bar on w.
func NewBarReporter(w io.Writer) Reporter {
	return &barReporter{w: w}
}

func (r *barReporter) Start(total int) {
	r.bar = pb.New(total)
	r.bar.SetWriter(r.w)
	r.bar.SetTemplate(`Reports {{counters . }} {{bar . }} {{percent . }} failed: {{string . "failed"}} {{etime . }}`)
	r.bar.Set("failed", "0")
	r.bar.Start()
}

func (r *barReporter) Done(_ string, err error) {
	if r.bar == nil {
		return
	}
	if err != nil {
		r.failed++
		r.bar.Set("failed", strconv.Itoa(r.failed))
	}
	r.bar.Increment()
}

func (r *barReporter) Finish() {
	if r.bar != nil {
		r.bar.Finish()
	}
}

