package util

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"
)

// CopyWithChecksum copies src to dst and returns the byte count with the
// hex sha256 of everything copied. Upload dedup keys on this checksum.
func CopyWithChecksum(dst io.Writer, src io.Reader) (int64, string, error) {
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(dst, h), src)
	if err != nil {
		return n, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// ChunkID is stable for the same document, position and text, so a
// reprocessed document overwrites rather than duplicates its chunks.
func ChunkID(documentID string, index int, text string) string {
	textSum := sha256.Sum256([]byte(text))
	h := sha256.New()
	io.WriteString(h, documentID)
	io.WriteString(h, ":"+strconv.Itoa(index)+":")
	h.Write(textSum[:])
	return hex.EncodeToString(h.Sum(nil))
}
