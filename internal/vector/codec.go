package vector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
)

// File layout, little endian:
//
//	magic [4]byte | version u32 | dimension u32 | count u32
//	count × (idLen u32 | id | dimension × f32)
//	crc32 (IEEE) of everything above
//
// A dimension of 0 stores IDs only (used next to FAISS files).
const formatVersion = 1

var (
	flatMagic = [4]byte{'S', 'H', 'V', 'F'}
	idsMagic  = [4]byte{'S', 'H', 'V', 'I'}
)

const (
	maxIDLen     = 1 << 16
	maxDimension = 1 << 16
)

func writeFile(path string, magic [4]byte, dim int, ids []string, vecs [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	crc := crc32.NewIEEE()
	bw := bufio.NewWriter(f)
	w := io.MultiWriter(bw, crc)

	if err := encode(w, magic, dim, ids, vecs); err != nil {
		f.Close()
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, crc.Sum32()); err != nil {
		f.Close()
		return fmt.Errorf("write checksum: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync index file: %w", err)
	}
	return f.Close()
}

func encode(w io.Writer, magic [4]byte, dim int, ids []string, vecs [][]float32) error {
	header := []uint32{formatVersion, uint32(dim), uint32(len(ids))}
	if _, err := w.Write(magic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	buf := make([]byte, dim*4)
	for i, id := range ids {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(id))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := io.WriteString(w, id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if dim == 0 {
			continue
		}
		for j, v := range vecs[i] {
			binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

func readFile(path string, magic [4]byte) (int, []string, [][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(data) < 20 {
		return 0, nil, nil, fmt.Errorf("%w: file too short (%d bytes)", ErrCorrupt, len(data))
	}
	body, tail := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(tail) {
		return 0, nil, nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	if !bytes.Equal(body[:4], magic[:]) {
		return 0, nil, nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, body[:4])
	}
	r := bytes.NewReader(body[4:])
	var header [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return 0, nil, nil, fmt.Errorf("%w: read header: %v", ErrCorrupt, err)
	}
	version, dim, count := header[0], int(header[1]), int(header[2])
	if version != formatVersion {
		return 0, nil, nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}
	if dim > maxDimension {
		return 0, nil, nil, fmt.Errorf("%w: dimension %d out of range", ErrCorrupt, dim)
	}
	minEntry := 4 + dim*4
	if count < 0 || count*minEntry > r.Len() {
		return 0, nil, nil, fmt.Errorf("%w: count %d does not fit file", ErrCorrupt, count)
	}

	ids := make([]string, 0, count)
	var vecs [][]float32
	if dim > 0 {
		vecs = make([][]float32, 0, count)
	}
	buf := make([]byte, dim*4)
	for i := 0; i < count; i++ {
		var idLen uint32
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return 0, nil, nil, fmt.Errorf("%w: read id len: %v", ErrCorrupt, err)
		}
		if idLen > maxIDLen || int(idLen) > r.Len() {
			return 0, nil, nil, fmt.Errorf("%w: id length %d out of range", ErrCorrupt, idLen)
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return 0, nil, nil, fmt.Errorf("%w: read id: %v", ErrCorrupt, err)
		}
		ids = append(ids, string(id))
		if dim == 0 {
			continue
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, nil, nil, fmt.Errorf("%w: read vector: %v", ErrCorrupt, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		vecs = append(vecs, vec)
	}
	if r.Len() != 0 {
		return 0, nil, nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, r.Len())
	}
	return dim, ids, vecs, nil
}
