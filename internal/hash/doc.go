// Package hash provides the CRC32-Castagnoli checksum stored in region
// container headers. The standard library table is hardware accelerated on
// amd64 and arm64.
//
//	sum := hash.CRC32C(raw)
//	ok := hash.VerifyCRC32C(raw, sum)
package hash
