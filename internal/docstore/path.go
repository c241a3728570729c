package docstore

import (
	"fmt"
	"regexp"
	"strings"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// docPath is a parsed slash path: collection, optional document key and
// optional field segments inside the document.
type docPath struct {
	collection string
	key        string
	field      []string
}

func parsePath(path string) (docPath, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return docPath{}, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		if !segmentPattern.MatchString(seg) {
			return docPath{}, fmt.Errorf("%w: %q has bad segment %q", ErrInvalidPath, path, seg)
		}
	}

	p := docPath{collection: segments[0]}
	if len(segments) > 1 {
		p.key = segments[1]
	}
	if len(segments) > 2 {
		p.field = segments[2:]
	}
	return p, nil
}

// fieldPath renders the field segments as a gjson/sjson path.
func (p docPath) fieldPath() string {
	return strings.Join(p.field, ".")
}

func (p docPath) documentPath() string {
	return p.collection + "/" + p.key
}

func (p docPath) String() string {
	parts := []string{p.collection}
	if p.key != "" {
		parts = append(parts, p.key)
	}
	return strings.Join(append(parts, p.field...), "/")
}

// overlaps reports whether a change at one path is visible from the other.
func overlaps(a, b string) bool {
	a = strings.Trim(a, "/")
	b = strings.Trim(b, "/")
	return a == b || strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
