package cache

import (
	"encoding/binary"
	"strings"

	"github.com/google/uuid"

	"github.com/Konsultn-Engineering/accessorcache/member"
)

// flightKey identifies one in-flight miss for singleflight. Only callers
// with the same expression share a flight, so one caller's compile error
// never reaches another.
//
// Layout:
// [0-15]:  store epoch (unique per type store and per clear)
// [16-23]: expression fingerprint, big endian
// [24-]:   descriptor root and member path
func flightKey(epoch uuid.UUID, exprFP uint64, d member.Descriptor) string {
	var fp [8]byte
	binary.BigEndian.PutUint64(fp[:], exprFP)

	var sb strings.Builder
	sb.Grow(len(epoch) + len(fp) + len(d.Path) + 32)
	sb.Write(epoch[:])
	sb.Write(fp[:])
	sb.WriteString(d.String())
	return sb.String()
}
