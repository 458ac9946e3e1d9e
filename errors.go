package codelesson

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ParseError is a lesson problem tied to a place in the source file.
type ParseError struct {
	File    string // Source file path
	Line    int    // Line number (1-indexed, 0 when unknown)
	Column  int    // Column number (1-indexed, optional)
	Message string // Error message
	Hint    string // Helpful suggestion
	Related string // Related information (e.g., "block 'b2' declared at line 40")

	source []byte // file content, read from File when nil
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return e.Format()
}

// Format returns the error with the surrounding source lines, the hint and
// related information.
func (e *ParseError) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "❌ Error in %s\n\n", e.File)
	if e.Line > 0 {
		fmt.Fprintf(&b, "Line %d: %s\n", e.Line, e.Message)
	} else {
		fmt.Fprintf(&b, "%s\n", e.Message)
	}

	if context := e.codeContext(); context != "" {
		b.WriteString(context)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, "\n💡 Tip: %s\n", e.Hint)
	}
	if e.Related != "" {
		fmt.Fprintf(&b, "\n🔗 %s\n", e.Related)
	}
	return b.String()
}

// codeContext shows two lines either side of the error line.
func (e *ParseError) codeContext() string {
	if e.Line < 1 {
		return ""
	}
	src := e.source
	if src == nil && e.File != "" {
		data, err := os.ReadFile(e.File)
		if err != nil {
			return ""
		}
		src = data
	}
	if src == nil {
		return ""
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(src))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if e.Line > len(lines) {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	start := max(1, e.Line-2)
	end := min(len(lines), e.Line+2)
	for i := start; i <= end; i++ {
		prefix := fmt.Sprintf("  %2d | ", i)
		b.WriteString(prefix + lines[i-1] + "\n")
		if i == e.Line && e.Column > 0 {
			b.WriteString(strings.Repeat(" ", len(prefix)+e.Column-1) + "^\n")
		}
	}
	return b.String()
}

// NewParseError creates a new ParseError.
func NewParseError(file string, line int, message string) *ParseError {
	return &ParseError{
		File:    file,
		Line:    line,
		Message: message,
	}
}

// WithColumn adds column information to the error.
func (e *ParseError) WithColumn(col int) *ParseError {
	e.Column = col
	return e
}

// WithHint adds a helpful hint to the error.
func (e *ParseError) WithHint(hint string) *ParseError {
	e.Hint = hint
	return e
}

// WithRelated adds related information to the error.
func (e *ParseError) WithRelated(related string) *ParseError {
	e.Related = related
	return e
}

// WithSource sets the content used for the code context.
func (e *ParseError) WithSource(src []byte) *ParseError {
	e.source = src
	return e
}

var yamlLineRe = regexp.MustCompile(`line (\d+)(?::(\d+))?`)

// lineFromYAMLError pulls "line N" out of a yaml.v3 error message.
func lineFromYAMLError(msg string) (line, col int) {
	m := yamlLineRe.FindStringSubmatch(msg)
	if m == nil {
		return 0, 0
	}
	line, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		col, _ = strconv.Atoi(m[2])
	}
	return line, col
}
