// Package hash provides fast, hardware-accelerated hashing utilities.
//
// All checksums use CRC32-Castagnoli (CRC32C):
//
//   - Hardware acceleration on x86 (SSE4.2) and ARM (CRC extension)
//   - Superior error detection compared to CRC32-IEEE
//   - Industry standard (iSCSI, Btrfs, RocksDB, LevelDB)
//
// CRC32C serves two roles here: block integrity checksums, and the seeded
// row-weight hash. The weight hash is a sampling key, not a cryptographic
// one; uniformity of the low 32 bits is all the index requires.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash
