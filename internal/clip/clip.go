// Package clip makes diagnostic artifact paths available to the operator's
// clipboard. Fatal reports are most useful when they can be pasted into a
// ticket straight from the terminal that watched the process die, so every
// copy attempt degrades gracefully: native clipboard, then an OSC52 escape
// for SSH sessions, then a temp file whose path is printed instead.
package clip

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	atotto "github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"golang.org/x/term"
)

// Method is the mechanism that made the content copyable.
type Method string

const (
	MethodNative Method = "native" // OS clipboard via github.com/atotto/clipboard
	MethodOSC52  Method = "osc52"  // terminal clipboard via OSC52 escape sequence
	MethodFile   Method = "file"   // temp-file fallback
)

// Result reports how the content was delivered. FilePath is set only for
// MethodFile, where the clipboard was unreachable and the content landed in
// a temp file instead.
type Result struct {
	Method   Method
	FilePath string
}

// These vars exist for testability.
var (
	nativeCopy = func(text string) error { return atotto.WriteAll(text) }
	osc52Copy  = copyOSC52
)

// CopyText tries to put text on the operator's clipboard.
//
// Strategy:
//  1. Native clipboard (atotto/clipboard)
//  2. OSC52 terminal clipboard (survives SSH and WSL without interop)
//  3. Temp file fallback
func CopyText(text string) (Result, error) {
	if err := nativeCopy(text); err == nil {
		return Result{Method: MethodNative}, nil
	}

	if err := osc52Copy(text); err == nil {
		return Result{Method: MethodOSC52}, nil
	}

	path, err := writeTempFile(text)
	if err != nil {
		return Result{}, err
	}

	return Result{Method: MethodFile, FilePath: path}, nil
}

// Conservative default; terminals can have strict OSC52 limits.
const osc52LimitBytes = 100_000

func copyOSC52(text string) error {
	if text == "" {
		return errors.New("empty clipboard text")
	}
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return errors.New("stderr is not a terminal")
	}
	if len(text) > osc52LimitBytes {
		return fmt.Errorf("text too large for OSC52 (%d bytes > %d)", len(text), osc52LimitBytes)
	}

	seq := osc52.New(text).Limit(osc52LimitBytes)
	if os.Getenv("TMUX") != "" {
		seq = seq.Tmux()
	} else if os.Getenv("STY") != "" {
		seq = seq.Screen()
	}

	// Stderr: stdout may be piped, and the escape must reach the terminal.
	_, err := seq.WriteTo(os.Stderr)
	return err
}

func writeTempFile(text string) (string, error) {
	f, err := os.CreateTemp("", fmt.Sprintf("lifeline-clipboard-%d-*.txt", time.Now().UnixNano()))
	if err != nil {
		return "", err
	}
	path := f.Name()
	// Best-effort cleanup on error.
	defer func() {
		_ = f.Close()
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err = f.WriteString(text); err != nil {
		return "", err
	}
	if err = f.Close(); err != nil {
		return "", err
	}

	return filepath.Clean(path), nil
}
