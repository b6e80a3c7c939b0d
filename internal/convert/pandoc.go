package convert

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const pandocTimeout = 30 * time.Second

// PandocConverter shells out to the pandoc binary, converting HTML to
// GitHub-flavored Markdown. Binary availability is probed once and cached,
// so a host without pandoc fails fast on every page instead of spawning
// processes that cannot start.
type PandocConverter struct {
	binary  string
	timeout time.Duration

	probe    sync.Once
	probeErr error
}

// NewPandocConverter returns a converter using the pandoc binary from PATH.
func NewPandocConverter() *PandocConverter {
	return &PandocConverter{binary: "pandoc", timeout: pandocTimeout}
}

// Name identifies the strategy in logs and failure stubs.
func (p *PandocConverter) Name() string { return "pandoc" }

// Convert runs one pandoc process over the given HTML.
func (p *PandocConverter) Convert(ctx context.Context, contentHTML string) (string, error) {
	p.probe.Do(func() {
		_, p.probeErr = exec.LookPath(p.binary)
	})
	if p.probeErr != nil {
		return "", fmt.Errorf("pandoc unavailable: %w", p.probeErr)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary, "-f", "html", "-t", "gfm", "--wrap=none")
	cmd.Stdin = strings.NewReader(contentHTML)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("pandoc: %w: %s", err, msg)
		}
		return "", fmt.Errorf("pandoc: %w", err)
	}
	return stdout.String(), nil
}
