package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"steemauth/internal/domain"
)

// Terminal asks on a terminal. Secrets are read without echo when in is a
// terminal and line by line otherwise.
type Terminal struct {
	in     *os.File
	out    io.Writer
	reader *bufio.Reader

	mu       sync.Mutex
	inflight chan termAnswer
}

type termAnswer struct {
	value string
	err   error
}

// NewTerminal returns a Terminal reading from in and writing prompts to out.
func NewTerminal(in *os.File, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out, reader: bufio.NewReader(in)}
}

// RequestPIN asks for the PIN protecting username's stored key.
func (t *Terminal) RequestPIN(ctx context.Context, username domain.Username) (string, error) {
	return t.ask(ctx, fmt.Sprintf("PIN for @%s: ", username))
}

// RequestActiveKey asks for the active key that signs operation.
func (t *Terminal) RequestActiveKey(
	ctx context.Context,
	username domain.Username,
	operation string,
	_ domain.Payload,
) (string, error) {
	return t.ask(ctx, fmt.Sprintf("Active key of @%s to sign %s: ", username, operation))
}

// ReadSecret prints label and reads one non-empty answer.
func (t *Terminal) ReadSecret(ctx context.Context, label string) (string, error) {
	return t.ask(ctx, label)
}

// OpenURL prints url for the user to open.
func (t *Terminal) OpenURL(_ context.Context, url string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.out, "Open this link to continue:\n  %s\n", url)
	return err
}

// ask prints label and reads one answer. A read still blocked when ctx ends
// is handed to the next ask.
func (t *Terminal) ask(ctx context.Context, label string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := io.WriteString(t.out, label); err != nil {
		return "", err
	}

	if t.inflight == nil {
		done := make(chan termAnswer, 1)
		go func() {
			value, err := t.read()
			done <- termAnswer{value, err}
		}()
		t.inflight = done
	}

	select {
	case a := <-t.inflight:
		t.inflight = nil
		if a.err != nil {
			return "", a.err
		}
		if a.value == "" {
			return "", ErrEmptyAnswer
		}
		return a.value, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *Terminal) read() (string, error) {
	fd := int(t.in.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		_, _ = io.WriteString(t.out, "\n")
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := t.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Compile-time assertions that Terminal implements the prompt interfaces.
var (
	_ domain.PINHandler       = (*Terminal)(nil)
	_ domain.ActiveKeyHandler = (*Terminal)(nil)
	_ domain.URLOpener        = (*Terminal)(nil)
)
