package ui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Output()
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(prev) })
	return &buf
}

func TestPrintHelpers(t *testing.T) {
	buf := captureOutput(t)

	PrintError("Failed to load", errors.New("boom"))
	PrintWarning("Careful")
	PrintSuccess("Done")
	PrintInfo("Sets", "3")

	s := buf.String()
	assert.Contains(t, s, Red("Failed to load: boom"))
	assert.Contains(t, s, Yellow("Careful"))
	assert.Contains(t, s, Green("Done"))
	assert.Contains(t, s, Cyan("Sets")+": "+Yellow("3"))
}

func TestSetOutputNilDiscards(t *testing.T) {
	prev := Output()
	t.Cleanup(func() { SetOutput(prev) })

	SetOutput(nil)
	assert.NotPanics(t, func() { PrintSuccess("quiet") })
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KiB", FormatBytes(1024))
	assert.Equal(t, "1.5 MiB", FormatBytes(1536*1024))
}

func TestSetProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewSetProgress(&buf, "Downloading: wolf", 2)
	require.NotNil(t, p.bar)

	p.Increment()
	p.Describe("Duplicate found: skipping...")
	p.Increment()
	p.Finish()

	assert.Equal(t, 1.0, p.bar.State().CurrentPercent)
}

func TestSetProgressEmptySet(t *testing.T) {
	var buf bytes.Buffer
	p := NewSetProgress(&buf, "Downloading: empty", 0)

	assert.NotPanics(t, func() {
		p.Describe("x")
		p.Increment()
		p.Finish()
	})
	assert.Empty(t, buf.String())
}

type recordingSender struct {
	titles   []string
	messages []string
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return errors.New("no notification daemon")
}

func TestNotifier(t *testing.T) {
	buf := captureOutput(t)
	sender := &recordingSender{}
	n := NewNotifierWithSender(sender)

	n.SessionFinished(SessionTotals{Sets: 2, Downloaded: 5, Skipped: 1})
	n.SessionFailed(errors.New("fetch error"))

	require.Len(t, sender.messages, 2)
	assert.Equal(t, "Downloaded 5 new files from 2 post sets (1 already on disk)", sender.messages[0])
	assert.Equal(t, "e621dl failed", sender.titles[1])
	assert.Contains(t, buf.String(), "fetch error")
}

func TestNotifierDisabled(t *testing.T) {
	captureOutput(t)
	n := NewNotifier(false)
	sender := &recordingSender{}
	n.sender = sender

	n.SendSuccess("title", "message")
	assert.Empty(t, sender.messages)
}
