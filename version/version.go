// Package version exposes the client build version and helpers for
// comparing dotted version strings during the server handshake.
package version

import "strconv"

// Version is the client release string sent in the User-Agent header
// and compared against the controller's reported version.
const Version = "2.2.0"

// Info holds the numeric components of Version: major, minor, patch and
// a development marker. A zero fourth component denotes a stable build.
var Info = [4]int{2, 2, 0, 0}

// Stable reports whether this build is a stable release.
func Stable() bool {
	return Info[3] == 0
}

// prerelease ranks order pre-release markers below the final release
// they precede and relative to each other: dev < alpha < beta < rc.
var prerelease = map[string]int{
	"dev":   -4,
	"a":     -3,
	"alpha": -3,
	"b":     -2,
	"beta":  -2,
	"rc":    -1,
}

// Parse splits a dotted version string into ordered integer components.
// Numeric runs become their integer value; pre-release markers are
// encoded as negative ranks so that "2.2.1rc1" orders below "2.2.1".
// Unrecognized letter runs rank lowest. "2.2.1rc1" parses to
// [2 2 1 -1 1].
func Parse(s string) []int {
	var out []int
	i := 0
	for i < len(s) {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			j := i
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			n, _ := strconv.Atoi(s[i:j])
			out = append(out, n)
			i = j
		case isLetter(c):
			j := i
			for j < len(s) && isLetter(s[j]) {
				j++
			}
			rank, ok := prerelease[s[i:j]]
			if !ok {
				rank = -5
			}
			out = append(out, rank)
			i = j
		default:
			i++
		}
	}
	return out
}

// Compare orders two version strings by their parsed components,
// padding the shorter with zeros. It returns -1, 0 or 1.
func Compare(a, b string) int {
	va, vb := Parse(a), Parse(b)
	n := len(va)
	if len(vb) > n {
		n = len(vb)
	}
	for i := 0; i < n; i++ {
		x, y := 0, 0
		if i < len(va) {
			x = va[i]
		}
		if i < len(vb) {
			y = vb[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

// SameMajorMinor reports whether two version strings agree on their
// first two components.
func SameMajorMinor(a, b string) bool {
	va, vb := Parse(a), Parse(b)
	for i := 0; i < 2; i++ {
		x, y := 0, 0
		if i < len(va) {
			x = va[i]
		}
		if i < len(vb) {
			y = vb[i]
		}
		if x != y {
			return false
		}
	}
	return true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
