package tui

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/xpander-ai/xpander-cli/internal/api"
)

// plainStep is the percentage granularity of non-terminal progress lines.
const plainStep = 10

// UploadProgress renders upload progress as a bar on a terminal and as
// occasional percentage lines elsewhere. Once the upload reaches the
// finalizing phase it prints a single status line instead.
type UploadProgress struct {
	out    io.Writer
	styled bool
	bar    progress.Model

	mu         sync.Mutex
	lastPct    int
	finalizing bool
}

// NewUploadProgress creates a progress reporter writing to out.
func NewUploadProgress(out io.Writer, styled bool) *UploadProgress {
	return &UploadProgress{
		out:     out,
		styled:  styled,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		lastPct: -1,
	}
}

// Update receives progress from the uploader. It may be called from the
// HTTP transport's goroutine.
func (u *UploadProgress) Update(p api.Progress) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if p.Finalizing {
		if !u.finalizing {
			u.finalizing = true
			if u.styled {
				fmt.Fprint(u.out, "\r\x1b[2K")
			}
			fmt.Fprintln(u.out, "Finalizing upload...")
		}
		return
	}
	if p.Percent == u.lastPct {
		return
	}

	if u.styled {
		u.lastPct = p.Percent
		fmt.Fprintf(u.out, "\r%s %3d%%", u.bar.ViewAs(float64(p.Percent)/100), p.Percent)
		return
	}
	if p.Percent/plainStep > u.lastPct/plainStep || u.lastPct < 0 {
		fmt.Fprintf(u.out, "Uploading... %d%%\n", p.Percent)
	}
	u.lastPct = p.Percent
}

// Done terminates the progress line.
func (u *UploadProgress) Done() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.styled && !u.finalizing && u.lastPct >= 0 {
		fmt.Fprintln(u.out)
	}
}
