package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xpander-ai/xpander-cli/internal/api"
)

func TestUploadProgress_Plain(t *testing.T) {
	var out bytes.Buffer
	p := NewUploadProgress(&out, false)
	for pct := 0; pct <= 100; pct += 5 {
		p.Update(api.Progress{Sent: int64(pct), Total: 100, Percent: pct, Finalizing: pct >= 95})
	}
	p.Done()

	got := out.String()
	if strings.Count(got, "Finalizing upload...") != 1 {
		t.Errorf("finalizing line should appear once:\n%s", got)
	}
	if !strings.Contains(got, "Uploading... 0%") || !strings.Contains(got, "Uploading... 50%") {
		t.Errorf("missing percentage lines:\n%s", got)
	}
	if strings.Contains(got, "Uploading... 55%") {
		t.Errorf("plain output should only print every 10%%:\n%s", got)
	}
	if strings.Contains(got, "\r") {
		t.Error("plain output must not use carriage returns")
	}
}

func TestUploadProgress_Styled(t *testing.T) {
	var out bytes.Buffer
	p := NewUploadProgress(&out, true)
	p.Update(api.Progress{Sent: 10, Total: 100, Percent: 10})
	p.Update(api.Progress{Sent: 10, Total: 100, Percent: 10})
	p.Update(api.Progress{Sent: 40, Total: 100, Percent: 40})
	p.Done()

	got := out.String()
	if strings.Count(got, "\r") != 2 {
		t.Errorf("repeated percentages should not redraw:\n%q", got)
	}
	if !strings.HasSuffix(got, "\n") {
		t.Error("Done should end the line")
	}
}
