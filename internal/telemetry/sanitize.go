package telemetry

import (
	"regexp"
	"strings"
)

var (
	secretKeyRe  = regexp.MustCompile(`sk-[A-Za-z0-9_-]{8,}`)
	longRandomRe = regexp.MustCompile(`\b[A-Za-z0-9_-]{24,}\b`)
	emailRe      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	homeDirRe    = regexp.MustCompile(`^(/home/[^/]+|/Users/[^/]+|/root)(/.*)?$`)
)

const (
	nonDebugMaxLen = 1000
	debugMaxLen    = 2000
)

// Sanitise is a pure function applied to any string before it becomes a
// span attribute or metric label. It masks credential-like substrings,
// partially masks email addresses, abbreviates a value that is itself a
// path under a home directory to "~/..." (paths embedded in longer text
// are left as they are), and truncates
// to a length determined by debugMode. It is idempotent: re-applying it to
// an already-sanitised string returns the same string.
func Sanitise(value string, debugMode bool) string {
	out := value
	out = maskCredentials(out, debugMode)
	out = maskEmails(out)
	out = abbreviatePath(out)
	out = truncate(out, debugMode)
	return out
}

func maskCredentials(s string, debugMode bool) string {
	keep := 3
	if debugMode {
		keep = 6
	}
	s = secretKeyRe.ReplaceAllStringFunc(s, func(match string) string {
		return maskKeepingPrefix(match, keep)
	})
	s = longRandomRe.ReplaceAllStringFunc(s, func(match string) string {
		if strings.Contains(match, "***") {
			return match
		}
		return maskKeepingPrefix(match, keep)
	})
	return s
}

func maskKeepingPrefix(s string, keep int) string {
	if keep > len(s) {
		keep = len(s)
	}
	return s[:keep] + "***"
}

func maskEmails(s string) string {
	return emailRe.ReplaceAllStringFunc(s, func(match string) string {
		at := strings.IndexByte(match, '@')
		if at <= 1 {
			return "***" + match[at:]
		}
		return match[:1] + "***" + match[at:]
	})
}

func abbreviatePath(s string) string {
	if m := homeDirRe.FindStringSubmatch(s); m != nil {
		if m[2] == "" {
			return "~"
		}
		return "~" + m[2]
	}
	return s
}

func truncate(s string, debugMode bool) string {
	limit := nonDebugMaxLen
	if debugMode {
		limit = debugMaxLen
	}
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "...(truncated)"
}
