package normalize

import "strings"

// NormalizePath collapses duplicate slashes and resolves "." and ".."
// segments. A ".." never climbs above the root.
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}

	rooted := p[0] == '/'
	keepSlash := len(p) > 1 && p[len(p)-1] == '/'

	segments := make([]string, 0, strings.Count(p, "/")+1)
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if n := len(segments); n > 0 {
				segments = segments[:n-1]
			}
		default:
			segments = append(segments, seg)
		}
	}

	out := strings.Join(segments, "/")
	if rooted {
		out = "/" + out
	}
	if keepSlash && len(out) > 1 {
		out += "/"
	}
	if out == "" {
		return "/"
	}
	return out
}
