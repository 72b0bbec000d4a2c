package wapi

import (
	"net/url"
	"sort"
	"strings"
)

// Params is a set of name/value pairs used for URL queries and form bodies.
// A nil *Params behaves as an empty list for every read operation.
type Params struct {
	values map[string]string
}

// NewParams returns an empty parameter list.
func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

// Set stores value under name, replacing any previous value. It returns the
// list so calls can be chained.
func (p *Params) Set(name, value string) *Params {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	p.values[name] = value
	return p
}

// Get returns the value stored under name.
func (p *Params) Get(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[name]
	return v, ok
}

// Has reports whether name is present.
func (p *Params) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// Remove deletes name and returns the value it held.
func (p *Params) Remove(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[name]
	delete(p.values, name)
	return v, ok
}

// Len returns the number of pairs.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.values)
}

// Names returns all parameter names in lexicographic order.
func (p *Params) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy.
func (p *Params) Clone() *Params {
	out := NewParams()
	if p == nil {
		return out
	}
	for k, v := range p.values {
		out.values[k] = v
	}
	return out
}

// Merge returns a new list holding the pairs of p overwritten by the pairs of
// other. Neither input is modified.
func (p *Params) Merge(other *Params) *Params {
	out := p.Clone()
	if other == nil {
		return out
	}
	for k, v := range other.values {
		out.values[k] = v
	}
	return out
}

// QueryString renders the pairs as name=value joined by '&', percent-encoded
// as UTF-8 with spaces written as %20. Names are sorted so that two lists with
// the same members always produce the same string.
func (p *Params) QueryString() string {
	names := p.Names()
	if len(names) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, name := range names {
		if i > 0 {
			builder.WriteByte('&')
		}
		builder.WriteString(escapeQueryComponent(name))
		builder.WriteByte('=')
		builder.WriteString(escapeQueryComponent(p.values[name]))
	}
	return builder.String()
}

// String implements fmt.Stringer.
func (p *Params) String() string {
	names := p.Names()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+p.values[name])
	}
	return "Params{" + strings.Join(parts, ", ") + "}"
}

// escapeQueryComponent is url.QueryEscape with '+' replaced by "%20". A literal
// '+' is already escaped to %2B, so the replacement is unambiguous.
func escapeQueryComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
