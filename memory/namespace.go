package memory

import (
	"strings"
)

// Namespace is a hierarchical tenant key scoping every memory record.
// It is an ordered, non-empty sequence of non-blank segments; identity is
// fully determined by segment equality and order. Namespaces are immutable
// once constructed and safe to share across goroutines.
type Namespace struct {
	segments []string
}

// GlobalNamespace is the distinguished single-segment namespace used when
// no segments are supplied.
var GlobalNamespace = Namespace{segments: []string{"global"}}

// NewNamespace builds a namespace from the given segments.
// With no segments it returns GlobalNamespace; any blank segment fails
// with ErrBlankSegment.
func NewNamespace(segments ...string) (Namespace, error) {
	if len(segments) == 0 {
		return GlobalNamespace, nil
	}
	out := make([]string, len(segments))
	for i, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			return Namespace{}, ErrBlankSegment
		}
		out[i] = seg
	}
	return Namespace{segments: out}, nil
}

// MustNamespace is NewNamespace that panics on invalid segments.
// Intended for package-level defaults and tests.
func MustNamespace(segments ...string) Namespace {
	ns, err := NewNamespace(segments...)
	if err != nil {
		panic(err)
	}
	return ns
}

// ForUser returns the conventional per-user namespace ("user", id).
func ForUser(userID string) (Namespace, error) {
	return NewNamespace("user", userID)
}

// ForSession returns the conventional per-session namespace ("session", id).
func ForSession(sessionID string) (Namespace, error) {
	return NewNamespace("session", sessionID)
}

// Segments returns a copy of the segment sequence.
func (n Namespace) Segments() []string {
	out := make([]string, len(n.segments))
	copy(out, n.segments)
	return out
}

// First returns the first segment.
func (n Namespace) First() string {
	if len(n.segments) == 0 {
		return ""
	}
	return n.segments[0]
}

// Last returns the last segment.
func (n Namespace) Last() string {
	if len(n.segments) == 0 {
		return ""
	}
	return n.segments[len(n.segments)-1]
}

// Depth returns the number of segments.
func (n Namespace) Depth() int {
	return len(n.segments)
}

// Child returns a new namespace with segment appended.
func (n Namespace) Child(segment string) (Namespace, error) {
	if strings.TrimSpace(segment) == "" {
		return Namespace{}, ErrBlankSegment
	}
	segs := make([]string, 0, len(n.segments)+1)
	segs = append(segs, n.segments...)
	segs = append(segs, segment)
	return Namespace{segments: segs}, nil
}

// Parent returns the namespace with the last segment dropped, or
// GlobalNamespace when depth is 1 or less.
func (n Namespace) Parent() Namespace {
	if len(n.segments) <= 1 {
		return GlobalNamespace
	}
	segs := make([]string, len(n.segments)-1)
	copy(segs, n.segments[:len(n.segments)-1])
	return Namespace{segments: segs}
}

// StartsWith reports whether prefix is a segment-wise prefix of n.
func (n Namespace) StartsWith(prefix Namespace) bool {
	if len(prefix.segments) > len(n.segments) {
		return false
	}
	for i, seg := range prefix.segments {
		if n.segments[i] != seg {
			return false
		}
	}
	return true
}

// Equal reports whether both namespaces have identical segment sequences.
func (n Namespace) Equal(other Namespace) bool {
	if len(n.segments) != len(other.segments) {
		return false
	}
	for i, seg := range n.segments {
		if other.segments[i] != seg {
			return false
		}
	}
	return true
}

// IsZero reports whether the namespace was never constructed.
func (n Namespace) IsZero() bool {
	return len(n.segments) == 0
}

// Path returns the canonical slash-joined representation used as the
// storage and lookup key.
func (n Namespace) Path() string {
	return strings.Join(n.segments, "/")
}

func (n Namespace) String() string {
	return n.Path()
}

// ParseNamespace rebuilds a namespace from its canonical slash-joined path.
func ParseNamespace(path string) (Namespace, error) {
	if path == "" {
		return Namespace{}, ErrBlankSegment
	}
	return NewNamespace(strings.Split(path, "/")...)
}

// NamespaceTemplate is an ordered sequence of parts, each a literal or a
// string containing {variable} placeholders. Templates hold no mutable state
// and are safe for concurrent reuse across many resolutions.
type NamespaceTemplate struct {
	parts []string
}

// NewNamespaceTemplate builds a template from the given parts.
func NewNamespaceTemplate(parts ...string) (*NamespaceTemplate, error) {
	if len(parts) == 0 {
		return nil, ErrBlankSegment
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, ErrBlankSegment
		}
	}
	out := make([]string, len(parts))
	copy(out, parts)
	return &NamespaceTemplate{parts: out}, nil
}

// Resolve substitutes every {variable} placeholder from vars and returns the
// concrete namespace. It fails with MissingVariableError naming the first
// unresolved placeholder it encounters.
func (t *NamespaceTemplate) Resolve(vars map[string]string) (Namespace, error) {
	segments := make([]string, len(t.parts))
	for i, part := range t.parts {
		resolved, err := substitute(part, vars)
		if err != nil {
			return Namespace{}, err
		}
		segments[i] = resolved
	}
	return NewNamespace(segments...)
}

// Parts returns a copy of the template parts.
func (t *NamespaceTemplate) Parts() []string {
	out := make([]string, len(t.parts))
	copy(out, t.parts)
	return out
}

func (t *NamespaceTemplate) String() string {
	return strings.Join(t.parts, "/")
}

// substitute replaces each {name} span in part with vars[name].
// A plain string scan; nested or unterminated braces pass through as literals.
func substitute(part string, vars map[string]string) (string, error) {
	var b strings.Builder
	for {
		open := strings.IndexByte(part, '{')
		if open < 0 {
			b.WriteString(part)
			return b.String(), nil
		}
		closeIdx := strings.IndexByte(part[open:], '}')
		if closeIdx < 0 {
			b.WriteString(part)
			return b.String(), nil
		}
		closeIdx += open

		b.WriteString(part[:open])
		name := part[open+1 : closeIdx]
		value, ok := vars[name]
		if !ok {
			return "", &MissingVariableError{Variable: name}
		}
		b.WriteString(value)
		part = part[closeIdx+1:]
	}
}
