// Package components renders the console's shared markup.
package components

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// HTML collects markup for a component. The first write error sticks and
// later writes are skipped, so component bodies stay linear.
type HTML struct {
	ctx context.Context
	w   io.Writer
	err error
}

// Component builds a templ component from a markup function.
func Component(fn func(h *HTML)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &HTML{ctx: ctx, w: w}
		fn(h)
		return h.err
	})
}

// Raw writes trusted markup.
func (h *HTML) Raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

// Rawf writes trusted formatted markup. Arguments are not escaped.
func (h *HTML) Rawf(format string, args ...any) {
	h.Raw(fmt.Sprintf(format, args...))
}

// Text writes escaped text.
func (h *HTML) Text(s string) {
	h.Raw(templ.EscapeString(s))
}

// Omit as an attribute value drops the attribute.
const Omit = "\x00"

// If returns a value-less attribute value when cond holds, Omit otherwise.
// It is used for boolean attributes such as disabled and selected.
func If(cond bool) string {
	if cond {
		return ""
	}
	return Omit
}

// Open writes a start tag with escaped attributes given as name, value pairs.
// An empty value writes a boolean attribute.
func (h *HTML) Open(tag string, attrs ...string) {
	h.Raw("<" + tag)
	for i := 0; i+1 < len(attrs); i += 2 {
		h.Attr(attrs[i], attrs[i+1])
	}
	h.Raw(">")
}

// Attr writes one attribute inside a start tag.
func (h *HTML) Attr(name, value string) {
	if value == Omit {
		return
	}
	if value == "" {
		h.Raw(" " + name)
		return
	}
	h.Raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

// Close writes an end tag.
func (h *HTML) Close(tag string) {
	h.Raw("</" + tag + ">")
}

// Elem writes an element whose body is escaped text.
func (h *HTML) Elem(tag, text string, attrs ...string) {
	h.Open(tag, attrs...)
	h.Text(text)
	h.Close(tag)
}

// Render writes a child component.
func (h *HTML) Render(c templ.Component) {
	if h.err != nil || c == nil {
		return
	}
	h.err = c.Render(h.ctx, h.w)
}

// Signals returns a data-signals attribute value for v.
func Signals(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Post returns a datastar action posting to url.
func Post(url string) string {
	return "@post('" + url + "')"
}

// Get returns a datastar action fetching url.
func Get(url string) string {
	return "@get('" + url + "')"
}

// Itoa formats an int for markup.
func Itoa(n int) string {
	return strconv.Itoa(n)
}
