// Package payload converts raw file bytes to and from the transport-safe
// text encoding stored inside a share record. The wire form is a data URL
// ("data:<type>;base64,<data>") so the payload embeds safely in any
// text-oriented storage column.
package payload

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dropcode/dropcode/internal/domain"
)

const defaultFileType = "application/octet-stream"

// encodeChunk is the raw-byte chunk size between progress reports. Multiple
// of 3 so chunk boundaries never split a base64 quantum.
const encodeChunk = 48 * 1024

// ProgressFunc reports encoding progress keyed to actual bytes processed.
type ProgressFunc func(done, total int64)

// Encode renders raw bytes as a data URL with the declared file type.
func Encode(raw []byte, fileType string) string {
	return EncodeWithProgress(raw, fileType, nil)
}

// EncodeWithProgress is Encode with a per-chunk progress callback. fn may be
// nil. Progress is driven by bytes actually encoded, not a timer.
func EncodeWithProgress(raw []byte, fileType string, fn ProgressFunc) string {
	if fileType == "" {
		fileType = defaultFileType
	}
	total := int64(len(raw))
	var sb strings.Builder
	sb.WriteString("data:")
	sb.WriteString(fileType)
	sb.WriteString(";base64,")
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	var done int64
	for len(raw) > 0 {
		n := encodeChunk
		if n > len(raw) {
			n = len(raw)
		}
		_, _ = enc.Write(raw[:n]) // strings.Builder writes never fail
		raw = raw[n:]
		done += int64(n)
		if fn != nil {
			fn(done, total)
		}
	}
	_ = enc.Close()
	if fn != nil && total == 0 {
		fn(0, 0)
	}
	return sb.String()
}

// Decode recovers the raw bytes from an encoded payload. Malformed input
// fails with domain.ErrCorruptPayload; decode errors are never swallowed.
func Decode(encoded string) ([]byte, error) {
	if !strings.HasPrefix(encoded, "data:") {
		return nil, fmt.Errorf("%w: missing data prefix", domain.ErrCorruptPayload)
	}
	idx := strings.IndexByte(encoded, ',')
	if idx < 0 {
		return nil, fmt.Errorf("%w: missing separator", domain.ErrCorruptPayload)
	}
	header := encoded[len("data:"):idx]
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: unsupported encoding %q", domain.ErrCorruptPayload, header)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptPayload, err)
	}
	return raw, nil
}

// DeclaredType extracts the file type embedded in an encoded payload, or ""
// if the payload is malformed.
func DeclaredType(encoded string) string {
	if !strings.HasPrefix(encoded, "data:") {
		return ""
	}
	idx := strings.IndexByte(encoded, ',')
	if idx < 0 {
		return ""
	}
	return strings.TrimSuffix(encoded[len("data:"):idx], ";base64")
}
