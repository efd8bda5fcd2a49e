package resource

import "strings"

// Clean canonicalizes a virtual path rooted at the application root.
//
// The path must start with "/". Empty and "." segments are dropped and ".."
// pops the previous segment; a ".." with nothing left to pop is rejected with
// ErrTraversal. NUL bytes and backslashes are rejected with ErrInvalidPath.
// Clean never touches the filesystem.
func Clean(p string) (string, error) {
	if p == "" || p[0] != '/' {
		return "", ErrInvalidPath
	}
	if strings.ContainsAny(p, "\x00\\") {
		return "", ErrInvalidPath
	}

	segs := make([]string, 0, strings.Count(p, "/"))
	for seg := range strings.SplitSeq(p[1:], "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segs) == 0 {
				return "", ErrTraversal
			}
			segs = segs[:len(segs)-1]
		default:
			segs = append(segs, seg)
		}
	}
	return "/" + strings.Join(segs, "/"), nil
}

// rel converts a cleaned virtual path into a source-relative name ("" for root).
func rel(clean string) string {
	return strings.TrimPrefix(clean, "/")
}
