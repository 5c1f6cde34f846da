package auth

import (
	"crypto/md5" //nolint:gosec // vanilla's offline-UUID algorithm is pinned to MD5
	"fmt"

	"github.com/google/uuid"
)

// ParseUndashedUUID parses the 32-character hex UUID Mojang's
// sessionserver returns (no dashes) into a uuid.UUID.
func ParseUndashedUUID(s string) (uuid.UUID, error) {
	if len(s) != 32 {
		return uuid.UUID{}, fmt.Errorf("expected 32-character undashed UUID, got %d characters", len(s))
	}
	dashed := s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32]
	return uuid.Parse(dashed)
}

// OfflineUUID derives the deterministic UUID vanilla servers assign a
// player when online-mode is disabled: an MD5 digest of
// "OfflinePlayer:<username>" reinterpreted as an RFC 4122 version-3
// UUID (spec.md §4.B offline mode, §4.M).
func OfflineUUID(username string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + username)) //nolint:gosec
	sum[6] = (sum[6] & 0x0f) | 0x30 // version 3
	sum[8] = (sum[8] & 0x3f) | 0x80 // RFC 4122 variant
	id, _ := uuid.FromBytes(sum[:])
	return id
}
