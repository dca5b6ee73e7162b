package main

import (
	"bufio"
	"fmt"
	"io"
)

// confirmBootReset asks the operator to hold BOOT and press RESET on
// the target board, matching the original tool's input() prompt. It
// blocks until a line (any content) is read from in, or returns an
// error if in is closed first.
func confirmBootReset(in io.Reader, out io.Writer) error {
	fmt.Fprint(out, "Hold BOOT, press RESET, then press Enter to continue... ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading confirmation: %w", err)
		}
		return fmt.Errorf("reading confirmation: input closed")
	}
	return nil
}
