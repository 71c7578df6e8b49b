// Package command parses the line protocol and dispatches queued commands
// to the drive, arm, sensor and safety layers.
//
// A command line is TYPE, TYPE:value or TYPE:value1,value2. Types are
// case-insensitive and every command gets a response line: OK_<TYPE>,
// ERROR_<TYPE>, or a command-specific payload.
package command

import (
	"strconv"
	"strings"
	"time"
)

// Command is one parsed protocol line. Parameter keeps the raw text after
// the colon; Timestamp is set when the command is queued.
type Command struct {
	Type      string
	Parameter string
	Value1    int
	Value2    int
	Timestamp time.Time
}

// Parse splits a line into its type and up to two integer values. Parsing
// never fails: whitespace is trimmed, the type is uppercased and values
// that do not parse as integers read as zero.
func Parse(line string) Command {
	line = strings.TrimSpace(line)

	typ, rest, found := strings.Cut(line, ":")
	cmd := Command{Type: strings.ToUpper(strings.TrimSpace(typ))}
	if !found {
		return cmd
	}
	cmd.Parameter = strings.TrimSpace(rest)

	v1, v2, found := strings.Cut(rest, ",")
	cmd.Value1 = parseInt(v1)
	if found {
		cmd.Value2 = parseInt(v2)
	}
	return cmd
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
