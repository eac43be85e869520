package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tanq16/kickstart/internal/downloader"
	"github.com/tanq16/kickstart/internal/utils"
)

// Renderer draws download progress in place on a terminal. Each Render call
// erases the lines drawn by the previous one.
type Renderer struct {
	out      io.Writer
	title    string
	barWidth int

	mu       sync.Mutex
	numLines int
	finished bool
}

func NewRenderer(out io.Writer, title string) *Renderer {
	width := min(max(terminalWidth(out)-60, 10), 30)
	return &Renderer{out: out, title: title, barWidth: width}
}

func (r *Renderer) Render(snap downloader.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.clear()
	status := pendingStyle.Render(StyleSymbols["pending"])
	r.draw(status, pendingStyle.Render(r.title), snap, true)
}

// Finish draws the final state once. Later Render calls are ignored.
func (r *Renderer) Finish(snap downloader.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.finished = true
	r.clear()
	if snap.FailedChunks > 0 || snap.Downloaded < snap.Total {
		msg := fmt.Sprintf("%s (%d chunks failed)", r.title, snap.FailedChunks)
		r.draw(errorStyle.Render(StyleSymbols["fail"]), errorStyle.Render(msg), snap, false)
		return
	}
	r.draw(successStyle.Render(StyleSymbols["pass"]), successStyle.Render(r.title), snap, false)
}

func (r *Renderer) draw(status, message string, snap downloader.Snapshot, live bool) {
	indent := strings.Repeat(" ", 2)
	elapsed := snap.Elapsed.Round(time.Second).String()
	fmt.Fprintf(r.out, "%s%s %s %s\n", indent, status, debugStyle.Render(elapsed), message)

	parts := []string{
		ProgressBar(snap.Fraction, r.barWidth),
		fmt.Sprintf("%s / %s", utils.FormatBytes(uint64(max(snap.Downloaded, 0))), utils.FormatBytes(uint64(max(snap.Total, 0)))),
	}
	if live {
		parts = append(parts, utils.FormatSpeed(snap.Speed), "ETA "+utils.FormatETA(snap.ETA, snap.ETAKnown))
	}
	sep := " " + StyleSymbols["bullet"] + " "
	fmt.Fprintf(r.out, "%s%s\n", strings.Repeat(" ", 2+4), debugStyle.Render(strings.Join(parts, sep)))
	r.numLines = 2
}

func (r *Renderer) clear() {
	if r.numLines > 0 {
		fmt.Fprintf(r.out, "\033[%dA\033[J", r.numLines)
		r.numLines = 0
	}
}
