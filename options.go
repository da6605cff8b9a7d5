package sqlitecore

// WALMode selects how Open decides whether to look for a sibling -wal file.
type WALMode int

const (
	// WALAuto opens the sibling -wal file when the header's read/write
	// version indicates WAL mode (value 2). This is the default.
	WALAuto WALMode = iota
	// WALForceOff never opens a -wal file, even if the header asks for one.
	WALForceOff
)

// Options configures a database Open. The zero value is a read-only,
// unencrypted, uncompressed open with a 500-page cache and WAL
// auto-detection - the common case.
type Options struct {
	// PageCacheSize is the bounded LRU page cache size, in pages. 0 selects
	// the engine default (500 pages).
	PageCacheSize int

	// EncryptionKey, if non-empty, inserts a decrypting page transform
	// ahead of the cache. Must be a valid AES key length (16, 24, or 32
	// bytes).
	EncryptionKey []byte

	// EncryptionSalt is the per-database salt used to derive per-page AEAD
	// nonces. Required when EncryptionKey is set.
	EncryptionSalt [16]byte

	// EncryptionKeyHash, if non-empty, is checked against EncryptionKey and
	// EncryptionSalt via pager.VerifyKey before any page is decrypted, so a
	// wrong key fails at Open instead of on the first page read.
	EncryptionKeyHash []byte

	// Decompress enables the xz page-decompression transform, for a page
	// source produced by a compressing writer external to this engine.
	Decompress bool

	// UseMmap opens the main file with a memory-mapped page source instead
	// of a positional-read one.
	UseMmap bool

	// MaxDatabaseSize, if non-zero, causes Open to fail if the file exceeds
	// this many bytes.
	MaxDatabaseSize int64

	// TextEncodingOverride, if non-zero (utf.UTF8/UTF16LE/UTF16BE),
	// overrides the file header's declared text encoding.
	TextEncodingOverride byte

	// WALMode controls whether Open looks for a sibling -wal file.
	WALMode WALMode
}

const defaultPageCacheSize = 500
