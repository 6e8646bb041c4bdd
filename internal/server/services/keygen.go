package services

import (
	"crypto/md5"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultExtension is used when a filename carries no usable extension.
	DefaultExtension = "bin"

	partitionDigits = 6
	maxExtensionLen = 16
)

// KeyGenerator derives storage keys of the form
// <partition>/<md5hex>_<unixmillis>.<ext>, where partition is the first six
// digits of the millisecond timestamp. Keys are a pure function of content
// digest, filename and time. Identical content with the same extension
// uploaded within the same millisecond maps to the same key.
type KeyGenerator struct{}

func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{}
}

// NewDigest returns the hash whose sum Generate expects.
func (g *KeyGenerator) NewDigest() hash.Hash {
	return md5.New()
}

// Generate builds the key for an already computed digest.
func (g *KeyGenerator) Generate(digest []byte, filename string, at time.Time) string {
	ms := at.UnixMilli()
	if ms < 0 {
		ms = 0
	}
	millis := strconv.FormatInt(ms, 10)

	var b strings.Builder
	b.Grow(partitionDigits + 1 + hex.EncodedLen(len(digest)) + 1 + len(millis) + 1 + maxExtensionLen)
	b.WriteString(Partition(millis))
	b.WriteByte('/')
	b.WriteString(hex.EncodeToString(digest))
	b.WriteByte('_')
	b.WriteString(millis)
	b.WriteByte('.')
	b.WriteString(Extension(filename))
	return b.String()
}

// Partition returns the first six digits of a decimal millisecond
// timestamp, left padded with zeros when shorter.
func Partition(millis string) string {
	if len(millis) < partitionDigits {
		return strings.Repeat("0", partitionDigits-len(millis)) + millis
	}
	return millis[:partitionDigits]
}

// Extension returns the text after the last dot of the base name of
// filename, or DefaultExtension when there is none or it is not a short
// alphanumeric token.
func Extension(filename string) string {
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 || dot == len(base)-1 {
		return DefaultExtension
	}
	ext := base[dot+1:]
	if len(ext) > maxExtensionLen {
		return DefaultExtension
	}
	for i := 0; i < len(ext); i++ {
		c := ext[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return DefaultExtension
		}
	}
	return ext
}
