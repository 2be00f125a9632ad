package prompt

import (
	"io"
	"maps"
	"strings"
	"sync"

	"github.com/valyala/fasttemplate"
)

const (
	startTag = "{{"
	endTag   = "}}"
)

// Bind replaces every {{name}} placeholder whose name is present in vars.
// Unknown placeholders, unterminated tags and names in vars that do not occur
// in the template are left as they are. A nil or empty vars returns text
// unchanged. The innermost "{{" starts a tag, so "{{{a}}" binds a and keeps
// one literal "{".
func Bind(text string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(text, startTag) {
		return text
	}

	// The tag func never fails, so the error is always nil.
	out, _ := fasttemplate.ExecuteFuncStringWithErr(text, startTag, endTag, func(w io.Writer, tag string) (int, error) {
		return writeTag(w, tag, vars)
	})

	return out
}

func writeTag(w io.Writer, tag string, vars map[string]string) (int, error) {
	// "{{a {{b}}" yields the tag "a {{b": the outer brace pair is literal text.
	if i := strings.LastIndex(tag, startTag); i >= 0 {
		n, err := io.WriteString(w, startTag+tag[:i])
		if err != nil {
			return n, err
		}

		m, err := writeTag(w, tag[i+len(startTag):], vars)

		return n + m, err
	}

	if strings.HasPrefix(tag, "{") {
		n, err := io.WriteString(w, "{")
		if err != nil {
			return n, err
		}

		m, err := writeTag(w, tag[1:], vars)

		return n + m, err
	}

	if v, ok := vars[strings.TrimSpace(tag)]; ok && strings.TrimSpace(tag) != "" {
		return io.WriteString(w, v)
	}

	return io.WriteString(w, startTag+tag+endTag)
}

// Placeholders returns the distinct placeholder names of text in first-seen order.
func Placeholders(text string) []string {
	var (
		names []string
		seen  = map[string]bool{}
	)

	rest := text
	for {
		i := strings.Index(rest, startTag)
		if i < 0 {
			break
		}

		rest = rest[i+len(startTag):]

		j := strings.Index(rest, endTag)
		if j < 0 {
			break
		}

		tag := rest[:j]
		if k := strings.LastIndex(tag, startTag); k >= 0 {
			tag = tag[k+len(startTag):]
		}
		tag = strings.TrimLeft(tag, "{")

		if name := strings.TrimSpace(tag); name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}

		rest = rest[j+len(endTag):]
	}

	return names
}

// Template is a prompt whose variables can be bound at any time before
// rendering. It is safe for concurrent use.
type Template struct {
	mu   sync.RWMutex
	text string
	vars map[string]string
}

// NewTemplate returns a Template for text with no variables bound.
func NewTemplate(text string) *Template {
	return &Template{text: text, vars: map[string]string{}}
}

// Text returns the raw, unbound template text.
func (t *Template) Text() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.text
}

// SetText replaces the template text and keeps the bound variables.
func (t *Template) SetText(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.text = text
}

// SetVariables merges vars into the bound variables. Later calls override
// earlier values for the same name.
func (t *Template) SetVariables(vars map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	maps.Copy(t.vars, vars)
}

// Variables returns a copy of the bound variables.
func (t *Template) Variables() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return maps.Clone(t.vars)
}

// Render binds the stored variables over extra and returns the result.
// Stored variables take precedence over extra.
func (t *Template) Render(extra map[string]string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(extra) == 0 {
		return Bind(t.text, t.vars)
	}

	merged := make(map[string]string, len(extra)+len(t.vars))
	maps.Copy(merged, extra)
	maps.Copy(merged, t.vars)

	return Bind(t.text, merged)
}
