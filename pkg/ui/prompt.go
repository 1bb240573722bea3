package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoInput is returned when the input stream ends before a valid answer
var ErrNoInput = errors.New("no input: stream closed before an answer was given")

// ParseYesNo interprets a console answer. The second result is false when
// the input is neither yes nor no.
func ParseYesNo(input string) (answer bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	default:
		return false, false
	}
}

// AskYesNo prints "{msg} (Y/N)?" and reads lines from in until one parses.
// Each invalid answer prints "Incorrect input!" and "Try again!". It only
// fails when in is exhausted or returns an error.
func AskYesNo(in io.Reader, w io.Writer, msg string) (bool, error) {
	reader := bufio.NewReader(in)
	fmt.Fprintf(w, "%s (Y/N)?\n", msg)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("failed to read answer: %w", err)
		}

		if answer, ok := ParseYesNo(line); ok {
			return answer, nil
		}
		if err != nil {
			return false, ErrNoInput
		}

		fmt.Fprintln(w, "Incorrect input!")
		fmt.Fprintln(w, "Try again!")
	}
}

// WaitForEnter prints msg and blocks until a line (or EOF) is read from in
func WaitForEnter(in io.Reader, w io.Writer, msg string) {
	fmt.Fprintln(w, msg)
	bufio.NewReader(in).ReadString('\n')
}
