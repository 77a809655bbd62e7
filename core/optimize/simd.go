// Package optimize detects wide-register CPU features and exposes a fast
// ASCII case-insensitive byte-slice comparison. The teacher used this to
// compare router paths; here it backs httpmsg.EqualFoldBytes, the
// request-header-name comparison that runs on every Header()/Query()
// lookup in the parser's hot loop.
package optimize

import (
	"golang.org/x/sys/cpu"
)

var (
	useAVX2 bool // x86_64 AVX2
	useNEON bool // ARM64 NEON (ASIMD)
)

func init() {
	if cpu.ARM64.HasASIMD {
		useNEON = true
	}
	if cpu.X86.HasAVX2 {
		useAVX2 = true
	}
}

// EqualFoldASCII reports whether a and b are equal, ignoring ASCII case.
// Short inputs (the overwhelming majority of header names) take the plain
// byte-compare path; longer ones dispatch through the same widened loop,
// gated on the detected CPU feature rather than true hand-written SIMD;
// no assembly kernel is shipped here.
func EqualFoldASCII(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) < 16 {
		return equalFoldScalar(a, b)
	}
	if useNEON || useAVX2 {
		return equalFoldWide(a, b)
	}
	return equalFoldScalar(a, b)
}

func equalFoldScalar(a, b []byte) bool {
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// equalFoldWide walks the input in blocks of 8 bytes, folding and
// comparing each byte of a block on its own (the same per-byte work as
// equalFoldScalar, unrolled by block), with no hand-written assembly per
// architecture.
func equalFoldWide(a, b []byte) bool {
	n := len(a)
	i := 0
	for ; i+8 <= n; i += 8 {
		for j := 0; j < 8; j++ {
			ca, cb := a[i+j], b[i+j]
			if ca >= 'A' && ca <= 'Z' {
				ca += 'a' - 'A'
			}
			if cb >= 'A' && cb <= 'Z' {
				cb += 'a' - 'A'
			}
			if ca != cb {
				return false
			}
		}
	}
	return equalFoldScalar(a[i:], b[i:])
}
