package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

type entryStatus int

const (
	statusPending entryStatus = iota
	statusSuccess
	statusSkipped
	statusError
)

type boardEntry struct {
	ID      int
	URL     string
	Status  entryStatus
	Message string
	Error   error
	Time    time.Time
}

// Board collects the outcome of every entry in a batch and prints the
// summary once the batch is done.
type Board struct {
	mu      sync.Mutex
	entries []*boardEntry
}

func NewBoard() *Board {
	return &Board{}
}

func (b *Board) Register(url string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, &boardEntry{ID: len(b.entries) + 1, URL: url, Time: time.Now()})
	return len(b.entries)
}

func (b *Board) entry(id int) *boardEntry {
	if id < 1 || id > len(b.entries) {
		return nil
	}
	return b.entries[id-1]
}

func (b *Board) Complete(id int, message string) {
	b.set(id, statusSuccess, message, nil)
}

func (b *Board) Skip(id int, message string) {
	b.set(id, statusSkipped, message, nil)
}

func (b *Board) ReportError(id int, err error) {
	b.set(id, statusError, "", err)
}

func (b *Board) set(id int, status entryStatus, message string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e := b.entry(id); e != nil {
		e.Status = status
		e.Message = message
		e.Error = err
		e.Time = time.Now()
	}
}

// Counts returns succeeded (including skipped) and failed entries.
func (b *Board) Counts() (succeeded, failed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.entries {
		switch e.Status {
		case statusSuccess, statusSkipped:
			succeeded++
		case statusError:
			failed++
		}
	}
	return succeeded, failed
}

func (b *Board) Summary(w io.Writer) {
	succeeded, failed := b.Counts()
	b.mu.Lock()
	defer b.mu.Unlock()
	total := len(b.entries)
	fmt.Fprintln(w)
	for _, e := range b.entries {
		switch e.Status {
		case statusSuccess:
			fmt.Fprintf(w, "%s%s %s\n", indent(2), FSuccess(StyleSymbols["pass"]), FDebug(e.Message))
		case statusSkipped:
			fmt.Fprintf(w, "%s%s %s\n", indent(2), FInfo(StyleSymbols["skip"]), FDebug(e.Message))
		case statusError:
			fmt.Fprintf(w, "%s%s %s\n", indent(2), FError(StyleSymbols["fail"]), FDebug(e.URL))
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, indent(2)+success2Style.Render(fmt.Sprintf("Completed %d of %d", succeeded, total)))
	if failed == 0 {
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintln(w, indent(2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failed, total)))
	fmt.Fprintln(w)
	fmt.Fprintln(w, indent(2)+errorStyle.Bold(true).Render("Errors:"))
	n := 0
	for _, e := range b.entries {
		if e.Status != statusError {
			continue
		}
		n++
		fmt.Fprintf(w, "%s%s %s %s\n", indent(4),
			errorStyle.Render(fmt.Sprintf("%d.", n)),
			debugStyle.Render(fmt.Sprintf("[%s]", e.Time.Format("15:04:05"))),
			errorStyle.Render(e.URL))
		fmt.Fprintf(w, "%s%s\n", indent(6), errorStyle.Render(fmt.Sprintf("Error: %v", e.Error)))
	}
	fmt.Fprintln(w)
}
