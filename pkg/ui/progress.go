package ui

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// SetProgress renders the progress of one post set as a console bar
type SetProgress struct {
	bar *progressbar.ProgressBar
}

// NewSetProgress starts a bar of total steps labelled with label.
// A set with no posts gets no bar.
func NewSetProgress(w io.Writer, label string, total int) *SetProgress {
	if total <= 0 {
		return &SetProgress{}
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(label),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("file"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionOnCompletion(func() { io.WriteString(w, "\n") }),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &SetProgress{bar: bar}
}

// Describe replaces the label shown next to the bar
func (p *SetProgress) Describe(label string) {
	if p.bar != nil {
		p.bar.Describe(label)
	}
}

// Increment advances the bar by one post
func (p *SetProgress) Increment() {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

// Finish completes the bar, also when the set stopped early
func (p *SetProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// SessionTotals summarises a finished download session
type SessionTotals struct {
	Sets       int
	Downloaded int
	Skipped    int
	Bytes      int64
}

// PrintSessionTotals prints the end-of-session summary lines
func PrintSessionTotals(t SessionTotals) {
	PrintInfo("Post sets", itoa(t.Sets))
	PrintInfo("Downloaded", itoa(t.Downloaded))
	PrintInfo("Skipped (already on disk)", itoa(t.Skipped))
	PrintInfo("Written", FormatBytes(t.Bytes))
}
