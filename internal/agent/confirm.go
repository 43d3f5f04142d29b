package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Confirmer decides whether an available update is installed.
type Confirmer interface {
	Confirm(ctx context.Context, snap Snapshot) (bool, error)
}

// AlwaysConfirm approves every update.
type AlwaysConfirm struct{}

func (AlwaysConfirm) Confirm(context.Context, Snapshot) (bool, error) { return true, nil }

// PromptConfirmer asks on a terminal. An empty answer means yes.
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (p PromptConfirmer) Confirm(ctx context.Context, snap Snapshot) (bool, error) {
	current := snap.Current
	if current == "" {
		current = "not installed"
	}
	channel := ""
	if snap.Beta {
		channel = " (beta)"
	}
	fmt.Fprintf(p.Out, "Update available%s: %s -> %s (%s)\nInstall now? [Y/n] ", channel, current, snap.Latest, snap.Asset)

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(p.In).ReadString('\n')
		answer <- line
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
