// Package framepack is the default compression engine: it packs an
// animation's frame directory into a single zstd-compressed archive.
//
// Archive layout (all integers little-endian or uvarint):
//
//	"FPK1"                      raw magic
//	zstd stream of:
//	  uvarint frame count
//	  per frame: uvarint name length, name,
//	             uvarint data length, data (the encoded frame file),
//	             uint64 xxhash of data
//
// Engine.Compress is idempotent: an existing archive is reused. Concurrent
// writers of the same archive, in this process or another, are serialised by
// a lock file next to the output.
package framepack
