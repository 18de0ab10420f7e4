package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)
)

// DefaultPrintedTemplate prints the bare sequence after the prefix, e.g.
// KDG15.
const DefaultPrintedTemplate = "{PREFIX}{SEQ}"

// FormatPrintedNumber renders the human-facing invoice number for seq.
//
// Supported tokens: {PREFIX}, {SEQ} and zero-padded {SEQn}.
func FormatPrintedNumber(template, prefix string, seq int64) (string, error) {
	if template == "" {
		template = DefaultPrintedTemplate
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}

	out := strings.ReplaceAll(template, "{PREFIX}", prefix)
	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(seq, 10))
	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}
	return out, nil
}

// Parser recognises printed numbers rendered by FormatPrintedNumber with
// the same template and prefix.
type Parser struct {
	re *regexp.Regexp
}

var tokenRe = regexp.MustCompile(`\{PREFIX\}|\{SEQ\d*\}`)

// NewParser compiles template into a matcher. The template must carry
// exactly one sequence token so the sequence can be read back.
func NewParser(template, prefix string) (*Parser, error) {
	if template == "" {
		template = DefaultPrintedTemplate
	}
	if prefix == "" {
		return nil, fmt.Errorf("invoice prefix is empty")
	}

	var (
		b    strings.Builder
		seqs int
		last int
	)
	b.WriteString("^")
	literal := func(text string) bool {
		if strings.ContainsAny(text, "{}") {
			return false
		}
		b.WriteString(regexp.QuoteMeta(text))
		return true
	}
	for _, loc := range tokenRe.FindAllStringIndex(template, -1) {
		if !literal(template[last:loc[0]]) {
			return nil, fmt.Errorf("unresolved token in invoice format: %s", template)
		}
		if template[loc[0]:loc[1]] == "{PREFIX}" {
			b.WriteString(regexp.QuoteMeta(prefix))
		} else {
			seqs++
			b.WriteString(`([0-9]+)`)
		}
		last = loc[1]
	}
	if !literal(template[last:]) {
		return nil, fmt.Errorf("unresolved token in invoice format: %s", template)
	}
	b.WriteString("$")

	if seqs != 1 {
		return nil, fmt.Errorf("invoice format %q needs exactly one sequence token", template)
	}
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	return &Parser{re: re}, nil
}

// Parse extracts the sequence from printed. Numbers under another prefix or
// layout, or with a suffix that is not all digits, do not match.
func (p *Parser) Parse(printed string) (int64, bool) {
	m := p.re.FindStringSubmatch(strings.TrimSpace(printed))
	if m == nil {
		return 0, false
	}
	seq, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}
