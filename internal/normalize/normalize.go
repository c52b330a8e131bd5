package normalize

import (
	"net/url"
	"strings"
)

const defaultDecodeDepth = 2

type Options struct {
	MaxDecodeDepth int
	Lowercase      bool
	NormalizePath  bool
}

type Result struct {
	Raw        string
	Normalized string
}

func Apply(input string, opts Options) Result {
	res := Result{Raw: input, Normalized: input}

	depth := opts.MaxDecodeDepth
	if depth <= 0 {
		depth = defaultDecodeDepth
	}

	decoded := res.Normalized
	for i := 0; i < depth; i++ {
		next, ok := decodeOnce(decoded)
		if !ok || next == decoded {
			break
		}
		decoded = next
	}

	res.Normalized = decoded

	if opts.NormalizePath {
		res.Normalized = NormalizePath(res.Normalized)
	}
	if opts.Lowercase {
		res.Normalized = strings.ToLower(res.Normalized)
	}

	return res
}

// RequestPath is the form exclusion prefixes are matched against:
// percent-decoded up to the default depth, then dot segments resolved.
func RequestPath(raw string) string {
	return Apply(raw, Options{MaxDecodeDepth: defaultDecodeDepth, NormalizePath: true}).Normalized
}

func decodeOnce(input string) (string, bool) {
	decoded, err := url.PathUnescape(input)
	if err != nil {
		return input, false
	}
	return decoded, true
}
