package versioning

import (
	"strconv"
	"strings"
)

// InitialVersion is assigned to a lineage root the first time it is cloned.
const InitialVersion = "1.0"

// NextVersion increments the minor component of a major.minor version. An
// empty version counts as InitialVersion. Segments past the minor are
// dropped. A major that does not parse becomes 1 and a missing or unparsable
// minor becomes 0.
func NextVersion(current string) string {
	current = strings.TrimSpace(current)
	if current == "" {
		current = InitialVersion
	}
	parts := strings.Split(current, ".")
	majorPart, minorPart := parts[0], ""
	if len(parts) > 1 {
		minorPart = parts[1]
	}
	major, err := strconv.Atoi(majorPart)
	if err != nil || major < 0 {
		major = 1
	}
	minor, err := strconv.Atoi(minorPart)
	if err != nil || minor < 0 {
		minor = 0
	}
	return strconv.Itoa(major) + "." + strconv.Itoa(minor+1)
}

// CompareVersions orders dotted versions segment by segment, numerically when
// both segments are numbers, so "1.9" < "1.10". Missing segments sort first.
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		if i >= len(as) {
			return -1
		}
		if i >= len(bs) {
			return 1
		}
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return 0
}

func compareSegment(a, b string) int {
	an, aErr := strconv.Atoi(a)
	bn, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(a, b)
}
