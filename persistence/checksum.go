package persistence

import "hash/crc32"

// ComputeChecksum returns the CRC32 (IEEE) of data.
func ComputeChecksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
