package tree

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Path addresses a node by a sequence of reference tokens. Tokens name object
// fields or, when the parent is an array, decimal indices. The wire form is an
// RFC 6901 JSON pointer: "" is the root, "/children/0" the first row of the
// root container.
type Path struct {
	tokens []string
}

// Root returns the empty path.
func Root() Path {
	return Path{}
}

// NewPath builds a path from raw (unescaped) tokens.
func NewPath(tokens ...string) Path {
	if len(tokens) == 0 {
		return Path{}
	}
	t := make([]string, len(tokens))
	copy(t, tokens)
	return Path{tokens: t}
}

// ParsePath parses a JSON pointer string.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	if s[0] != '/' {
		return Path{}, errors.Errorf("invalid json pointer %q: must start with '/'", s)
	}
	parts := strings.Split(s[1:], "/")
	for i, part := range parts {
		tok, err := unescapeToken(part)
		if err != nil {
			return Path{}, errors.Wrapf(err, "invalid json pointer %q", s)
		}
		parts[i] = tok
	}
	return Path{tokens: parts}, nil
}

// MustParsePath is like ParsePath but panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func unescapeToken(tok string) (string, error) {
	if !strings.Contains(tok, "~") {
		return tok, nil
	}
	var b strings.Builder
	for i := 0; i < len(tok); i++ {
		if tok[i] != '~' {
			b.WriteByte(tok[i])
			continue
		}
		if i+1 >= len(tok) {
			return "", errors.New("dangling '~'")
		}
		switch tok[i+1] {
		case '0':
			b.WriteByte('~')
		case '1':
			b.WriteByte('/')
		default:
			return "", errors.Errorf("bad escape '~%c'", tok[i+1])
		}
		i++
	}
	return b.String(), nil
}

var tokenEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// String returns the JSON pointer form of p.
func (p Path) String() string {
	if len(p.tokens) == 0 {
		return ""
	}
	var b strings.Builder
	for _, tok := range p.tokens {
		b.WriteByte('/')
		b.WriteString(tokenEscaper.Replace(tok))
	}
	return b.String()
}

// Tokens returns a copy of the reference tokens.
func (p Path) Tokens() []string {
	t := make([]string, len(p.tokens))
	copy(t, p.tokens)
	return t
}

// Len returns the number of tokens.
func (p Path) Len() int {
	return len(p.tokens)
}

// IsRoot reports whether p addresses the document root.
func (p Path) IsRoot() bool {
	return len(p.tokens) == 0
}

// Child returns p extended with one field token.
func (p Path) Child(key string) Path {
	t := make([]string, len(p.tokens), len(p.tokens)+1)
	copy(t, p.tokens)
	return Path{tokens: append(t, key)}
}

// Index returns p extended with one array index token.
func (p Path) Index(i int) Path {
	return p.Child(strconv.Itoa(i))
}

// Row returns the path of row i of the container at p, i.e. p/children/i.
func (p Path) Row(i int) Path {
	return p.Child(ChildrenKey).Index(i)
}

// Parent returns p without its last token. The parent of the root is the root.
func (p Path) Parent() Path {
	if len(p.tokens) == 0 {
		return p
	}
	return NewPath(p.tokens[:len(p.tokens)-1]...)
}

// Equal reports whether p and o address the same node.
func (p Path) Equal(o Path) bool {
	if len(p.tokens) != len(o.tokens) {
		return false
	}
	for i := range p.tokens {
		if p.tokens[i] != o.tokens[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes p as a JSON pointer string.
func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes p from a JSON pointer string.
func (p *Path) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "path must be a json pointer string")
	}
	parsed, err := ParsePath(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
