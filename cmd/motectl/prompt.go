package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/and161185/motectl/internal/service"
)

// promptConfirmer asks on the terminal; anything but y/yes is a no.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *promptConfirmer) Confirm(_ context.Context, message string) bool {
	fmt.Fprintf(p.out, "%s [y/N]: ", message)
	line, err := readLine(p.in)
	if err != nil {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

type writerNotifier struct {
	w io.Writer
}

func (n *writerNotifier) Notify(_ context.Context, level service.Level, message string) {
	switch level {
	case service.LevelError:
		fmt.Fprintln(n.w, "error:", message)
	case service.LevelWarning:
		fmt.Fprintln(n.w, "warning:", message)
	default:
		fmt.Fprintln(n.w, message)
	}
}

// readLine returns one trimmed line. A final line without newline is
// returned with a nil error; io.EOF only when nothing was read.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func prompt(r *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprintf(w, "%s: ", label)
	return readLine(r)
}
