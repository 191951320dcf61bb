// Package replay serializes session input logs for storage and computes
// tamper-evident digests over them. The byte format is private to this
// package: nothing else ever decodes it.
package replay

import (
	"bytes"
	"compress/flate"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/MJE43/fruit-merge-go/internal/fruit"
	"github.com/MJE43/fruit-merge-go/internal/sim"
)

var (
	// ErrDecodeFailure indicates corrupt or truncated replay bytes.
	ErrDecodeFailure = errors.New("replay decode failed")

	// ErrIntegrityMismatch indicates a digest that does not match the
	// decoded content.
	ErrIntegrityMismatch = errors.New("replay integrity mismatch")
)

// Header: magic + format version. Bump the version on any layout change so
// old blobs fail decoding cleanly instead of decoding to garbage.
var magic = [4]byte{'F', 'M', 'R', '1'}

// xScale quantizes the normalized x coordinate to 4 decimal places. The
// digest normalizes to the same precision, so an encode/decode round trip
// can never produce a spurious hash mismatch from float representation.
const xScale = 10000

// Encode serializes the input log to its compact stored form: a varint-packed
// record stream (timestamp deltas, quantized x, tier), DEFLATE-compressed,
// with a CRC32 trailer over the compressed bytes. Raw DEFLATE has no checksum
// of its own and tolerates flipped padding bits, so the trailer is what makes
// every byte of the blob tamper-evident.
func Encode(log []sim.DropInput) ([]byte, error) {
	var raw bytes.Buffer
	raw.Write(magic[:])

	var scratch [binary.MaxVarintLen64]byte
	putUvarint := func(v uint64) {
		n := binary.PutUvarint(scratch[:], v)
		raw.Write(scratch[:n])
	}

	putUvarint(uint64(len(log)))

	var prevMs int64
	for i, in := range log {
		if in.X < 0 || in.X > 1 || !fruit.Valid(in.Tier) {
			return nil, fmt.Errorf("encode: entry %d out of range", i)
		}
		delta := in.AtMs - prevMs
		if i == 0 {
			delta = in.AtMs
		}
		if delta < 0 {
			return nil, fmt.Errorf("encode: entry %d timestamp regressed", i)
		}
		putUvarint(uint64(delta))
		putUvarint(uint64(quantizeX(in.X)))
		raw.WriteByte(byte(in.Tier))
		prevMs = in.AtMs
	}

	var out bytes.Buffer
	zw, err := flate.NewWriter(&out, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("compress replay: %w", err)
	}
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("compress replay: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress replay: %w", err)
	}

	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc32.ChecksumIEEE(out.Bytes()))
	out.Write(trailer[:])
	return out.Bytes(), nil
}

// Decode is the exact inverse of Encode.
func Decode(data []byte) ([]sim.DropInput, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: blob too short", ErrDecodeFailure)
	}
	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(trailer) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrDecodeFailure)
	}

	zr := flate.NewReader(bytes.NewReader(body))
	raw, err := io.ReadAll(zr)
	if cerr := zr.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	if len(raw) < len(magic) || !bytes.Equal(raw[:len(magic)], magic[:]) {
		return nil, fmt.Errorf("%w: bad header", ErrDecodeFailure)
	}
	r := bytes.NewReader(raw[len(magic):])

	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated count", ErrDecodeFailure)
	}
	const maxEntries = 1 << 20
	if count > maxEntries {
		return nil, fmt.Errorf("%w: implausible entry count %d", ErrDecodeFailure, count)
	}

	log := make([]sim.DropInput, 0, count)
	var atMs int64
	for i := uint64(0); i < count; i++ {
		delta, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated entry %d", ErrDecodeFailure, i)
		}
		xq, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated entry %d", ErrDecodeFailure, i)
		}
		tier, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated entry %d", ErrDecodeFailure, i)
		}
		if xq > xScale || !fruit.Valid(fruit.Tier(tier)) {
			return nil, fmt.Errorf("%w: entry %d out of range", ErrDecodeFailure, i)
		}
		atMs += int64(delta)
		log = append(log, sim.DropInput{
			X:    float64(xq) / xScale,
			AtMs: atMs,
			Tier: fruit.Tier(tier),
		})
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrDecodeFailure, r.Len())
	}
	return log, nil
}

// Digest returns the hex SHA-256 of the normalized log. The x coordinate is
// rounded to the codec's quantization precision before hashing, so the digest
// of a decoded log always equals the digest of the original.
func Digest(log []sim.DropInput) string {
	h := sha256.New()
	for _, in := range log {
		fmt.Fprintf(h, "%d:%d:%d\n", quantizeX(in.X), in.AtMs, in.Tier)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Check decodes the stored bytes and compares their digest with the expected
// hash, reporting ErrDecodeFailure or ErrIntegrityMismatch.
func Check(data []byte, expectedHash string) error {
	log, err := Decode(data)
	if err != nil {
		return err
	}
	if Digest(log) != expectedHash {
		return ErrIntegrityMismatch
	}
	return nil
}

// Verify reports whether the stored bytes decode to content matching the
// expected hash. Any decode failure is a verification failure, never an
// error that propagates.
func Verify(data []byte, expectedHash string) bool {
	return Check(data, expectedHash) == nil
}

func quantizeX(x float64) int {
	return int(math.Round(x * xScale))
}
