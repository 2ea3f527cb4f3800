// Package lzf implements the LZF block format used by the engine's CLZF2 helper.
//
// A stream is a sequence of chunks introduced by a control byte:
//
//	000LLLLL                     literal run of L+1 bytes
//	LLLooooo [LLLLLLLL] oooooooo back reference of length L+2 (L=7 reads an extra length byte),
//	                             copied from ((ooooo<<8)|oooooooo)+1 bytes before the output cursor
//
// There is no header and no checksum.
package lzf

import (
	"errors"
	"fmt"
)

const (
	maxLiteral = 1 << 5
	maxOffset  = 1 << 13
	maxRef     = (1 << 8) + (1 << 3)
	hashLog    = 14
	hashSize   = 1 << hashLog
)

// ErrCorrupt is returned when the input is not a valid LZF stream.
var ErrCorrupt = errors.New("lzf: corrupt input")

// Decompress expands an LZF stream. The output grows as needed.
func Decompress(in []byte) ([]byte, error) {
	out := make([]byte, 0, len(in)*2)
	ip := 0

	for ip < len(in) {
		ctrl := int(in[ip])
		ip++

		if ctrl < maxLiteral {
			n := ctrl + 1
			if ip+n > len(in) {
				return nil, fmt.Errorf("%w: literal run of %d bytes at offset %d overruns input", ErrCorrupt, n, ip-1)
			}
			out = append(out, in[ip:ip+n]...)
			ip += n
			continue
		}

		n := ctrl >> 5
		if n == 7 {
			if ip >= len(in) {
				return nil, fmt.Errorf("%w: missing length byte at offset %d", ErrCorrupt, ip)
			}
			n += int(in[ip])
			ip++
		}
		if ip >= len(in) {
			return nil, fmt.Errorf("%w: missing offset byte at offset %d", ErrCorrupt, ip)
		}
		ref := len(out) - ((ctrl & 0x1f) << 8) - 1 - int(in[ip])
		ip++
		if ref < 0 {
			return nil, fmt.Errorf("%w: back reference before start of output at offset %d", ErrCorrupt, ip-2)
		}

		// Byte-wise copy: source and destination may overlap.
		for k := 0; k < n+2; k++ {
			out = append(out, out[ref+k])
		}
	}

	return out, nil
}

// Compress produces an LZF stream that Decompress expands back to in.
func Compress(in []byte) []byte {
	out := make([]byte, 0, len(in)+len(in)/maxLiteral+1)
	var htab [hashSize]int // position+1; zero means empty

	litStart := 0
	flush := func(end int) {
		for litStart < end {
			n := end - litStart
			if n > maxLiteral {
				n = maxLiteral
			}
			out = append(out, byte(n-1))
			out = append(out, in[litStart:litStart+n]...)
			litStart += n
		}
	}

	ip := 0
	for ip+2 < len(in) {
		h := hash(in[ip], in[ip+1], in[ip+2])
		ref := htab[h] - 1
		htab[h] = ip + 1

		off := ip - ref - 1
		if ref < 0 || off >= maxOffset ||
			in[ref] != in[ip] || in[ref+1] != in[ip+1] || in[ref+2] != in[ip+2] {
			ip++
			continue
		}

		n := 3
		for ip+n < len(in) && n < maxRef && in[ref+n] == in[ip+n] {
			n++
		}

		flush(ip)
		l := n - 2
		if l < 7 {
			out = append(out, byte(l<<5|off>>8))
		} else {
			out = append(out, byte(7<<5|off>>8), byte(l-7))
		}
		out = append(out, byte(off))

		ip += n
		litStart = ip
	}

	flush(len(in))
	return out
}

func hash(a, b, c byte) int {
	v := uint32(a)<<16 | uint32(b)<<8 | uint32(c)
	return int((v * 2654435761) >> (32 - hashLog))
}
