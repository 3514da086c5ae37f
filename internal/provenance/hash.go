package provenance

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// SpecHash computes the SPEC_HASH embedded in a provenance block (§6.6):
// a blake2b-256 digest of the specification text a definition was
// generated against, hex-encoded. blake2b is the concrete wiring point
// for golang.org/x/crypto, previously an unused go.mod entry — chosen
// over a plain sha256 because it's the hash original_source's surrounding
// Rust toolchain (and this pack's other example repos) reach for when a
// fast, non-cryptographic-strength-but-still-collision-resistant content
// digest is all that's needed.
func SpecHash(spec []byte) string {
	sum := blake2b.Sum256(spec)
	return hex.EncodeToString(sum[:])
}
