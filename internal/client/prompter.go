package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// terminalPrompter reads backup passwords from an interactive terminal. It
// is the reference [service.Prompter]; a mobile host supplies its own
// implementation backed by native dialogs.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter returns a prompter reading from in and writing to out.
func NewTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(in), out: out}
}

func (p *terminalPrompter) RestorePassword(ctx context.Context) (string, error) {
	fmt.Fprint(p.out, "Backup password: ")
	return p.readLine()
}

func (p *terminalPrompter) NewBackupPassword(ctx context.Context) (string, bool, error) {
	fmt.Fprint(p.out, "Choose a backup password (min 8 chars, empty to skip): ")
	password, err := p.readLine()
	if err != nil {
		return "", false, err
	}
	if password == "" {
		return "", false, nil
	}
	return password, true, nil
}

func (p *terminalPrompter) OfferBackup(ctx context.Context) {
	fmt.Fprintln(p.out, "Your encryption key has no backup. Create one with the backup command.")
}

func (p *terminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read prompt input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
