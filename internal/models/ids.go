package models

import (
	"crypto/md5"

	"github.com/google/uuid"
)

// ChunkID derives a chunk identity from its text: the md5 digest with the
// RFC 4122 version 4 and variant bits forced. Equal text always yields an
// equal id.
func ChunkID(text string) uuid.UUID {
	sum := md5.Sum([]byte(text))
	sum[6] = (sum[6] & 0x0f) | 0x40
	sum[8] = (sum[8] & 0x3f) | 0x80
	id, _ := uuid.FromBytes(sum[:])
	return id
}
