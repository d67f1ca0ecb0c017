// Package pattern compiles <name>-capture patterns into a glob
// expression and an anchored capture regex, and assembles InputSets via
// the Cartesian-product algorithm from spec §4.6.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

var captureRe = regexp.MustCompile(`<(\w+)>`)

// Compiled is a pattern compiled into the two artifacts spec §4.6
// describes: a glob (every <name> rewritten to *) used to enumerate
// candidates, and a capture regex anchored at both ends.
type Compiled struct {
	Source       string
	Glob         string
	CaptureNames []string
	regex        *regexp.Regexp
	// IsList is true when the pattern's final path component contains a
	// '*', per the auto-list-detection rule in spec §4.6.
	IsList bool
}

// Compile compiles pattern. The grammar: <name> is a named capture
// matching one or more non-separator characters; * is a glob wildcard.
func Compile(p string) (*Compiled, error) {
	var names []string
	var globBuilder strings.Builder
	var regexBuilder strings.Builder
	regexBuilder.WriteByte('^')

	lastEnd := 0
	for _, loc := range captureRe.FindAllStringSubmatchIndex(p, -1) {
		start, end := loc[0], loc[1]
		nameStart, nameEnd := loc[2], loc[3]
		name := p[nameStart:nameEnd]
		names = append(names, name)

		literal := p[lastEnd:start]
		globBuilder.WriteString(literal)
		regexBuilder.WriteString(escapeForRegex(literal))

		globBuilder.WriteByte('*')
		fmt.Fprintf(&regexBuilder, "(?P<%s>[^/]+)", name)

		lastEnd = end
	}
	trailing := p[lastEnd:]
	globBuilder.WriteString(trailing)
	regexBuilder.WriteString(escapeForRegex(trailing))
	regexBuilder.WriteByte('$')

	regex, err := regexp.Compile(regexBuilder.String())
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", p, err)
	}

	glob := globBuilder.String()
	isList := strings.Contains(lastComponent(p), "*")

	return &Compiled{
		Source:       p,
		Glob:         glob,
		CaptureNames: names,
		regex:        regex,
		IsList:       isList,
	}, nil
}

func lastComponent(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx == -1 {
		return p
	}
	return p[idx+1:]
}

// escapeForRegex escapes literal text for embedding in the capture
// regex, while treating '*' as the glob wildcard [^/]* rather than a
// literal asterisk.
func escapeForRegex(s string) string {
	parts := strings.Split(s, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return strings.Join(parts, "[^/]*")
}

// Match reports whether key (a match key, e.g. a path relative to a base
// directory) satisfies the pattern, returning the captured values if so.
func (c *Compiled) Match(key string) (map[string]string, bool) {
	m := c.regex.FindStringSubmatch(key)
	if m == nil {
		return nil, false
	}
	captures := make(map[string]string, len(c.CaptureNames))
	for i, name := range c.regex.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		captures[name] = m[i]
	}
	return captures, true
}

// StaticPrefix extracts the literal directory prefix that precedes the
// first capture or wildcard in the pattern, used by internal/outputindex
// (spec §4.9). "a/b/<x>/c" -> "a/b/"; "<x>.txt" -> "".
func StaticPrefix(p string) string {
	bracket := strings.IndexByte(p, '<')
	star := strings.IndexByte(p, '*')
	cut := len(p)
	if bracket != -1 && bracket < cut {
		cut = bracket
	}
	if star != -1 && star < cut {
		cut = star
	}
	prefix := p[:cut]
	lastSlash := strings.LastIndexByte(prefix, '/')
	if lastSlash == -1 {
		return ""
	}
	return prefix[:lastSlash+1]
}

// Render substitutes every <name> in template with attrs[name].
func Render(template string, attrs map[string]string) string {
	result := template
	for name, value := range attrs {
		result = strings.ReplaceAll(result, "<"+name+">", value)
	}
	return result
}
