package rowset

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

const rowBlockVersion = 1

var (
	rowBlockMagic = [4]byte{'G', 'R', 'N', 'R'}
	zstdMagic     = [4]byte{0x28, 0xB5, 0x2F, 0xFD}
)

var (
	ErrRowBlockFormat   = errors.New("invalid row block format")
	ErrRowBlockVersion  = errors.New("unsupported row block version")
	ErrRowBlockChecksum = errors.New("row block checksum mismatch")
)

// Row is one logical row inside a rowset payload. Seq orders overwrites of
// the same key; the highest Seq wins during a merge.
type Row struct {
	Key       string
	Seq       uint64
	Value     []byte
	Tombstone bool
}

// EncodeRowBlock encodes rows into the uncompressed columnar block format:
// header, then seq / tombstone / key / value columns, each column laid out
// for all rows before the next starts.
func EncodeRowBlock(rows []Row) ([]byte, error) {
	if len(rows) > math.MaxUint32 {
		return nil, fmt.Errorf("row block too large: %d rows", len(rows))
	}

	var body bytes.Buffer
	body.Grow(len(rows) * 32)

	for _, row := range rows {
		writeUint64(&body, row.Seq)
	}
	for _, row := range rows {
		if row.Tombstone {
			body.WriteByte(1)
		} else {
			body.WriteByte(0)
		}
	}
	for _, row := range rows {
		if err := writeBytesWithLen(&body, []byte(row.Key)); err != nil {
			return nil, err
		}
	}
	for _, row := range rows {
		if err := writeBytesWithLen(&body, row.Value); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	buf.Grow(20 + body.Len())
	buf.Write(rowBlockMagic[:])
	buf.WriteByte(rowBlockVersion)
	buf.Write([]byte{0, 0, 0})
	writeUint32(&buf, uint32(len(rows)))
	writeUint64(&buf, xxhash.Sum64(body.Bytes()))
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

// DecodeRowBlock decodes an uncompressed columnar block, verifying the
// checksum before trusting any column data.
func DecodeRowBlock(data []byte) ([]Row, error) {
	if len(data) < 20 || !bytes.Equal(data[:4], rowBlockMagic[:]) {
		return nil, ErrRowBlockFormat
	}
	if data[4] != rowBlockVersion {
		return nil, fmt.Errorf("%w: %d", ErrRowBlockVersion, data[4])
	}
	rowCount := binary.LittleEndian.Uint32(data[8:12])
	checksum := binary.LittleEndian.Uint64(data[12:20])
	body := data[20:]
	if xxhash.Sum64(body) != checksum {
		return nil, ErrRowBlockChecksum
	}
	// The checksum covers the body only. Every row occupies at least 17 body
	// bytes (seq, tombstone flag, two length prefixes), which bounds a
	// corrupted header count before the row slice is allocated.
	if int64(rowCount)*17 > int64(len(body)) {
		return nil, fmt.Errorf("%w: row count %d exceeds body size %d", ErrRowBlockFormat, rowCount, len(body))
	}

	r := bytes.NewReader(body)
	rows := make([]Row, rowCount)
	for i := range rows {
		seq, err := readUint64(r)
		if err != nil {
			return nil, fmt.Errorf("read seq column: %w", err)
		}
		rows[i].Seq = seq
	}
	for i := range rows {
		flag, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read tombstone column: %w", err)
		}
		rows[i].Tombstone = flag == 1
	}
	for i := range rows {
		key, err := readBytesWithLen(r)
		if err != nil {
			return nil, fmt.Errorf("read key column: %w", err)
		}
		rows[i].Key = string(key)
	}
	for i := range rows {
		value, err := readBytesWithLen(r)
		if err != nil {
			return nil, fmt.Errorf("read value column: %w", err)
		}
		rows[i].Value = value
	}
	return rows, nil
}

// CompressRowBlock zstd-compresses an encoded block.
func CompressRowBlock(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// DecompressRowBlock reverses CompressRowBlock. Uncompressed input passes
// through untouched, so readers handle both forms.
func DecompressRowBlock(data []byte) ([]byte, error) {
	if !isZstdCompressed(data) {
		return data, nil
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

func isZstdCompressed(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], zstdMagic[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func writeBytesWithLen(buf *bytes.Buffer, data []byte) error {
	if len(data) > math.MaxUint32 {
		return fmt.Errorf("field too large: %d bytes", len(data))
	}
	writeUint32(buf, uint32(len(data)))
	buf.Write(data)
	return nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(tmp[:]), nil
}

func readBytesWithLen(r *bytes.Reader) ([]byte, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(tmp[:])
	if length == 0 {
		return nil, nil
	}
	if int(length) > r.Len() {
		return nil, ErrRowBlockFormat
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
