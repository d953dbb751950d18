package output

import (
	"fmt"
	"io"

	"github.com/tanq16/trickle/internal/buffers"
	"github.com/tanq16/trickle/internal/engine"
	"github.com/tanq16/trickle/internal/perf"
	"github.com/tanq16/trickle/internal/storage"
)

// ResultLine is the one-line outcome of a download.
func ResultLine(path string, r engine.Result) string {
	switch {
	case r.Skipped:
		return fmt.Sprintf("%s already complete (%s)", path, perf.FormatBytes(r.TotalBytes))
	case r.Success:
		return fmt.Sprintf("%s %s in %s at %s", path, perf.FormatBytes(r.TotalBytes), perf.FormatTime(r.Duration), perf.FormatSpeed(r.AverageSpeedKBps))
	}
	msg := fmt.Sprintf("%s: %s", path, r.Message())
	if r.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", r.StatusCode)
	}
	return msg
}

// WriteResult prints the outcome and, for completed transfers, the phase
// timing and rating.
func WriteResult(w io.Writer, path string, r engine.Result, target float64) {
	switch {
	case r.Skipped:
		fmt.Fprintf(w, "%s %s\n", FInfo(StyleSymbols["skip"]), ResultLine(path, r))
		return
	case !r.Success:
		fmt.Fprintf(w, "%s %s\n", FError(StyleSymbols["fail"]), FError(ResultLine(path, r)))
		return
	}
	fmt.Fprintf(w, "%s %s\n", FSuccess(StyleSymbols["pass"]), ResultLine(path, r))
	rows := [][2]string{
		{"Peak speed", perf.FormatSpeed(r.PeakSpeedKBps)},
		{"Pure transfer", perf.FormatSpeed(r.PureTransferSpeedKBps)},
		{"Connection setup", perf.FormatTime(r.ConnectionSetup)},
		{"Transfer time", perf.FormatTime(r.TransferOnly)},
		{"Efficiency", fmt.Sprintf("%.1f%%", r.TransferEfficiencyPercent)},
		{"Rating", perf.Rating(r.AverageSpeedKBps, target)},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s%s %s\n", indent(2), FDebug(fmt.Sprintf("%-17s", row[0]+":")), FDetail(row[1]))
	}
}

func WriteMemoryStatus(w io.Writer, s buffers.MemoryStatus) {
	state := FSuccess(StyleSymbols["pass"] + " healthy")
	if !s.Healthy {
		state = FWarning(StyleSymbols["warning"] + " low memory")
	}
	fmt.Fprintf(w, "%s %s\n", state, FDebug(s.Message))
}

func WriteDiagnostics(w io.Writer, d buffers.Diagnostics) {
	fmt.Fprintln(w, FHeader("Memory diagnostics"))
	WriteMemoryStatus(w, d.MemoryStatus)
	rows := [][2]string{
		{"Total heap", perf.FormatBytes(int64(d.TotalHeap))},
		{"Free heap", perf.FormatBytes(int64(d.FreeHeap))},
		{"Min free heap", perf.FormatBytes(int64(d.MinFreeHeap))},
		{"Max block", perf.FormatBytes(int64(d.MaxAllocatable))},
		{"Usage", fmt.Sprintf("%d%%", d.UsagePercent)},
		{"Smart download", buffers.FormatKB(d.SmartDownloadSize)},
		{"Smart write", buffers.FormatKB(d.SmartWriteSize)},
		{"Double capable", yesNo(d.DoubleCapable)},
		{"Allocated", yesNo(d.Allocated)},
	}
	if d.Allocated {
		rows = append(rows,
			[2]string{"Double buffering", yesNo(d.DoubleBuffering)},
			[2]string{"Download buffer", fmt.Sprintf("%s x%d", buffers.FormatKB(d.DownloadSize), d.SlotCount)},
			[2]string{"Write buffer", fmt.Sprintf("%s x%d", buffers.FormatKB(d.WriteSize), d.SlotCount)},
			[2]string{"Pool", buffers.FormatKB(d.PoolBytes)},
		)
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s%s %s\n", indent(2), FDebug(fmt.Sprintf("%-17s", row[0]+":")), FDetail(row[1]))
	}
}

func WriteStorage(w io.Writer, root string, total, used int64, files []storage.FileInfo) {
	fmt.Fprintln(w, FHeader("Storage "+root))
	if total > 0 {
		fmt.Fprintf(w, "%s%s %s of %s\n", indent(2), ProgressBar(used, total, 30), perf.FormatBytes(used), perf.FormatBytes(total))
	} else {
		fmt.Fprintf(w, "%s%s used, no capacity limit\n", indent(2), perf.FormatBytes(used))
	}
	for _, f := range files {
		name := f.Name
		if f.IsDir {
			name += "/"
			fmt.Fprintf(w, "%s%s %s\n", indent(4), FDebug(StyleSymbols["bullet"]), FInfo(name))
			continue
		}
		fmt.Fprintf(w, "%s%s %-32s %s\n", indent(4), FDebug(StyleSymbols["bullet"]), name, FDetail(perf.FormatBytes(f.Size)))
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
