package router

import (
	"regexp"
	"strings"
)

// sentinel stands in for an escaped slash while an expression is being
// split on its unescaped delimiters. 0x1 cannot appear in a valid path.
const escapedSlashSentinel = "\x01"

// TransformPath applies a sed-like s/from/to[/g] expression to an
// inbound path. If expr is empty and fallbackPath is set, fallbackPath
// replaces the path outright; otherwise the path passes through
// unchanged.
func TransformPath(path, expr, fallbackPath string) (string, error) {
	if expr == "" {
		if fallbackPath != "" {
			return fallbackPath, nil
		}
		return path, nil
	}

	sentinelled := strings.ReplaceAll(expr, `\/`, escapedSlashSentinel)
	segments := strings.Split(sentinelled, "/")
	// segments[0] is always "s"; from is [1], to is [2], optional flag is [3].
	if len(segments) < 3 {
		return "", ErrMalformedPathTransform(expr)
	}

	from := strings.ReplaceAll(segments[1], escapedSlashSentinel, "/")
	to := strings.ReplaceAll(segments[2], escapedSlashSentinel, "/")
	global := len(segments) >= 4 && segments[3] == "g"

	re, err := regexp.Compile(from)
	if err != nil {
		return "", ErrMalformedPathTransform(expr)
	}

	if global {
		return re.ReplaceAllString(path, to), nil
	}
	return re.ReplaceAllStringFunc(path, func() func(string) string {
		replaced := false
		return func(match string) string {
			if replaced {
				return match
			}
			replaced = true
			return re.ReplaceAllString(match, to)
		}
	}()), nil
}
