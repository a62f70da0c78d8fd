package utils

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
)

// Fingerprint accumulates a 64-bit FNV-1a hash over tags and nested
// fingerprints. Order matters: writing a then b differs from b then a.
type Fingerprint struct {
	h   hash.Hash64
	buf [8]byte
}

// NewFingerprint starts a fingerprint with a kind tag so that nodes of
// different kinds with equal children do not collide.
func NewFingerprint(tag string) *Fingerprint {
	f := &Fingerprint{h: fnv.New64a()}
	return f.Tag(tag)
}

// Tag writes s followed by a separator.
func (f *Fingerprint) Tag(s string) *Fingerprint {
	_, _ = f.h.Write([]byte(s))
	_, _ = f.h.Write([]byte{0})
	return f
}

// Child folds a nested fingerprint in.
func (f *Fingerprint) Child(fp uint64) *Fingerprint {
	binary.BigEndian.PutUint64(f.buf[:], fp)
	_, _ = f.h.Write(f.buf[:])
	return f
}

func (f *Fingerprint) Sum() uint64 {
	return f.h.Sum64()
}
