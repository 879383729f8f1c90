package device

import (
	"io"
	"regexp"
	"strings"
)

type stopKind int

const (
	stopPrompt stopKind = iota
	stopPassword
	stopConfirm
)

var (
	// promptLine matches "router>", "router#", "RP/0/RP0/CPU0:xr(config-if)#"
	promptLine   = regexp.MustCompile(`^[^\s>#]+[>#]$`)
	passwordLine = regexp.MustCompile(`(?i)password:$`)
	// confirmLine matches questions such as
	// "Uncommitted changes found, commit them before exiting(yes/no/cancel)? [cancel]:"
	confirmLine = regexp.MustCompile(`\?\s*\[[^\]]*\]:?$`)
	errorMarker = regexp.MustCompile(`(?m)^[ \t]*%[ \t]*(Invalid|Incomplete|Ambiguous|Failed|Error|Unknown|Bad|Unable|Access|Permission)`)
)

// shell drives a line-oriented device CLI: it writes commands and reads
// until the device prints a prompt.
type shell struct {
	r   io.Reader
	w   io.Writer
	buf []byte

	// prompt is the most recent prompt seen
	prompt string
}

func newShell(r io.Reader, w io.Writer) *shell {
	return &shell{r: r, w: w}
}

func (s *shell) send(line string) error {
	_, err := io.WriteString(s.w, line+"\n")
	return err
}

// run sends one command and returns its output up to the next prompt.
func (s *shell) run(cmd string) (string, error) {
	if err := s.send(cmd); err != nil {
		return "", err
	}
	out, _, err := s.readUntil(stopPrompt)
	return out, err
}

// readUntil reads until the trailing line matches one of want.
func (s *shell) readUntil(want ...stopKind) (string, stopKind, error) {
	tmp := make([]byte, 4096)
	for {
		if kind, ok := s.match(want); ok {
			return s.take(), kind, nil
		}
		n, err := s.r.Read(tmp)
		s.buf = append(s.buf, tmp[:n]...)
		if err != nil {
			if kind, ok := s.match(want); ok {
				return s.take(), kind, nil
			}
			return s.take(), stopPrompt, err
		}
	}
}

func (s *shell) take() string {
	out := string(s.buf)
	s.buf = s.buf[:0]
	return out
}

func (s *shell) match(want []stopKind) (stopKind, bool) {
	line := lastLine(s.buf)
	if line == "" {
		return stopPrompt, false
	}
	for _, k := range want {
		switch k {
		case stopPrompt:
			if promptLine.MatchString(line) {
				s.prompt = line
				return k, true
			}
		case stopPassword:
			if passwordLine.MatchString(line) {
				return k, true
			}
		case stopConfirm:
			if confirmLine.MatchString(line) {
				return k, true
			}
		}
	}
	return stopPrompt, false
}

func (s *shell) privileged() bool {
	return strings.HasSuffix(s.prompt, "#")
}

func (s *shell) inConfigMode() bool {
	return strings.Contains(s.prompt, "(config")
}

// lastLine returns the unterminated trailing line of buf, right-trimmed.
func lastLine(buf []byte) string {
	str := string(buf)
	if i := strings.LastIndexAny(str, "\r\n"); i >= 0 {
		str = str[i+1:]
	}
	return strings.TrimRight(str, " \t")
}

func hasCommandError(output string) bool {
	return errorMarker.MatchString(output)
}

// firstErrorLine picks the most useful line of device output for an error
// message: the first "% ..." marker line, else the last non-empty line.
func firstErrorLine(output string) string {
	if loc := errorMarker.FindStringIndex(output); loc != nil {
		rest := strings.TrimLeft(output[loc[0]:], " \t")
		if i := strings.IndexAny(rest, "\r\n"); i >= 0 {
			rest = rest[:i]
		}
		return strings.TrimSpace(rest)
	}
	lines := strings.FieldsFunc(output, func(r rune) bool { return r == '\n' || r == '\r' })
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return "no output"
}
