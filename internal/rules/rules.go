// Package rules rewrites transcripts with user substitution rules before
// they reach the clipboard.
//
// Two rule forms are accepted, one per line:
//
//	pull request => PR          literal, case-insensitive, every occurrence
//	s/deep\s*gram/Deepgram/g    sed style; flags i (default), g, m, s
//
// Blank lines and lines starting with # are ignored.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRule wraps every compile failure.
var ErrInvalidRule = errors.New("invalid substitution rule")

// maxPasses bounds rule chains such as "a => b", "b => a".
const maxPasses = 30

type rule struct {
	re          *regexp.Regexp
	replacement string
	// firstOnly replaces just the leftmost match per pass.
	firstOnly bool
}

func (r rule) apply(in string) string {
	if !r.firstOnly {
		return r.re.ReplaceAllString(in, r.replacement)
	}
	loc := r.re.FindStringSubmatchIndex(in)
	if loc == nil {
		return in
	}
	var out []byte
	out = r.re.ExpandString(out, r.replacement, in, loc)
	return in[:loc[0]] + string(out) + in[loc[1]:]
}

// Set is a compiled, ordered rule list. The zero value and nil leave text
// untouched.
type Set struct {
	rules []rule
}

// Compile parses lines in order. The returned error names the 1-based line.
func Compile(lines []string) (*Set, error) {
	s := &Set{}
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidRule, i+1, err)
		}
		s.rules = append(s.rules, r)
	}
	return s, nil
}

// Len reports how many rules compiled.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Apply runs every rule in order, repeating until a pass changes nothing or
// maxPasses is reached.
func (s *Set) Apply(text string) string {
	if s.Len() == 0 {
		return text
	}
	for range maxPasses {
		before := text
		for _, r := range s.rules {
			text = r.apply(text)
		}
		if text == before {
			break
		}
	}
	return text
}

func parseLine(line string) (rule, error) {
	if isSedRule(line) {
		return parseSed(line)
	}
	from, to, ok := strings.Cut(line, "=>")
	if !ok {
		return rule{}, errors.New("expected \"from => to\" or s/pattern/replacement/flags")
	}
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" {
		return rule{}, errors.New("empty source text")
	}
	return rule{
		re:          regexp.MustCompile("(?i)" + regexp.QuoteMeta(from)),
		replacement: strings.ReplaceAll(to, "$", "$$"),
	}, nil
}

func isSedRule(line string) bool {
	return len(line) > 1 && line[0] == 's' && isDelimiter(line[1])
}

func isDelimiter(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return false
	case c == ' ', c == '\t', c == '\\':
		return false
	}
	return true
}

func parseSed(line string) (rule, error) {
	delim := line[1]
	pattern, rest, err := splitField(line[2:], delim)
	if err != nil {
		return rule{}, fmt.Errorf("pattern: %w", err)
	}
	replacement, rest, err := splitField(rest, delim)
	if err != nil {
		return rule{}, fmt.Errorf("replacement: %w", err)
	}

	flags := "i"
	global := false
	for _, f := range strings.TrimSpace(rest) {
		switch f {
		case 'i':
		case 'g':
			global = true
		case 'm', 's':
			flags += string(f)
		default:
			return rule{}, fmt.Errorf("unknown flag %q", f)
		}
	}
	re, err := regexp.Compile("(?" + flags + ")" + pattern)
	if err != nil {
		return rule{}, err
	}
	return rule{re: re, replacement: replacement, firstOnly: !global}, nil
}

// splitField reads up to the next unescaped delim. An escaped delimiter
// loses its backslash; other escapes pass through for the regexp parser.
func splitField(s string, delim byte) (field, rest string, err error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			if s[i+1] == delim {
				b.WriteByte(delim)
			} else {
				b.WriteByte(c)
				b.WriteByte(s[i+1])
			}
			i++
			continue
		}
		if c == delim {
			return b.String(), s[i+1:], nil
		}
		b.WriteByte(c)
	}
	return "", "", errors.New("unterminated expression")
}
