// Package keystream implements the engine's save-file obfuscation: a byte-wise XOR
// against a short repeating key whose bytes drift by a fixed step every time they are used.
//
// The transform depends only on byte position, so applying it twice restores the input.
package keystream

// KeySize is the length of the repeating key.
const KeySize = 9

// drift is added to a key byte after each use (mod 256).
const drift = 27

// Key is the working key state.
type Key [KeySize]byte

// DefaultKey is the key used by the engine for saves and global.dat.
var DefaultKey = Key{229, 99, 174, 4, 45, 166, 127, 158, 69}

// Apply encodes or decodes buf in place with DefaultKey.
func Apply(buf []byte) {
	ApplyKey(DefaultKey, buf)
}

// ApplyKey encodes or decodes buf in place starting from the given key state.
// The key is taken by value; the caller's copy is never modified.
func ApplyKey(key Key, buf []byte) {
	for i := range buf {
		k := i % KeySize
		buf[i] ^= key[k]
		key[k] += drift
	}
}
