package output

import (
	"io"

	"github.com/tanq16/trickle/internal/perf"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Progress draws one bar per running download.
type Progress struct {
	p *mpb.Progress
}

func NewProgress(w io.Writer) *Progress {
	return &Progress{p: mpb.New(mpb.WithOutput(w), mpb.WithWidth(barWidth()))}
}

// Tracker feeds a bar from monitor snapshots.
type Tracker struct {
	bar *mpb.Bar
}

func (p *Progress) Track(name string, total int64) *Tracker {
	bar := p.p.New(max(total, 0),
		mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟"),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.OnComplete(decor.Percentage(decor.WC{W: 5}), "done"),
		),
		mpb.AppendDecorators(
			decor.Counters(decor.SizeB1024(0), "% .1f / % .1f"),
		),
	)
	return &Tracker{bar: bar}
}

// Update is meant to be registered with perf.WithProgressFunc.
func (t *Tracker) Update(s perf.Snapshot) {
	if s.HasTotalSize {
		t.bar.SetTotal(s.Total, false)
	}
	t.bar.SetCurrent(s.Bytes)
}

// Finish completes the bar on success and aborts it otherwise.
func (t *Tracker) Finish(success bool, bytes int64) {
	if success {
		t.bar.SetCurrent(bytes)
		t.bar.SetTotal(-1, true)
		return
	}
	t.bar.Abort(false)
}

func (p *Progress) Wait() {
	p.p.Wait()
}
