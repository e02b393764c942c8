package upgrade

import (
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// CompareVersions compares two stack versions such as "2.2.0.0-2041" and
// returns 1, 0 or -1. Only the numeric segments both versions carry are
// compared, so "2.2" and "2.2.1" are equal; build suffixes are ignored.
// Empty or unparsable input compares as 0.
func CompareVersions(first, second string) int {
	a, aLen, ok := parseVersion(first)
	if !ok {
		return 0
	}

	b, bLen, ok := parseVersion(second)
	if !ok {
		return 0
	}

	shared := min(aLen, bLen)

	as, bs := a.Segments64(), b.Segments64()
	for i := 0; i < shared; i++ {
		switch {
		case as[i] > bs[i]:
			return 1
		case as[i] < bs[i]:
			return -1
		}
	}

	return 0
}

// parseVersion returns the parsed version and how many numeric segments the
// caller actually wrote, since go-version pads short versions with zeros.
func parseVersion(raw string) (*goversion.Version, int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, 0, false
	}

	parsed, err := goversion.NewVersion(raw)
	if err != nil {
		return nil, 0, false
	}

	core := strings.TrimPrefix(raw, "v")
	if idx := strings.IndexAny(core, "-+"); idx >= 0 {
		core = core[:idx]
	}

	count := strings.Count(core, ".") + 1
	if segments := len(parsed.Segments64()); count > segments {
		count = segments
	}

	return parsed, count, true
}
