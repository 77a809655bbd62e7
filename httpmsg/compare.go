package httpmsg

import "github.com/searchktools/corehttpd/core/optimize"

// EqualFoldBytes reports whether name equals s, ignoring ASCII case. Used
// for request-side header lookups, which HTTP treats case-insensitively
// (unlike response-side GetHeader, which is case-sensitive by design).
func EqualFoldBytes(name []byte, s string) bool {
	if len(name) != len(s) {
		return false
	}
	return optimize.EqualFoldASCII(name, []byte(s))
}
