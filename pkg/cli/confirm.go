package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirm writes prompt followed by " [y/N]: " to w and reads one line from
// r. Only "y" and "yes" (any case) confirm; end of input declines.
func Confirm(r io.Reader, w io.Writer, prompt string) (bool, error) {
	if _, err := fmt.Fprintf(w, "%s [y/N]: ", prompt); err != nil {
		return false, err
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
