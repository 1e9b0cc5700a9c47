package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"irma.ai/internal/sim/atom"
)

// EncodeCells encodes a grid in offset order into base64(varint pairs).
// The pairs are (atom, run_len) repeated.
func EncodeCells(cells []atom.Atom) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(cells) {
		a := cells[i]
		run := 1
		for j := i + 1; j < len(cells) && cells[j] == a && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(a))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeCells reverses EncodeCells. want > 0 rejects payloads that do not
// expand to exactly want cells.
func DecodeCells(b64 string, want int) ([]atom.Atom, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]atom.Atom, 0, max(want, 0))
	for i := 0; i < len(raw); {
		a, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if a > 0xFFFF {
			return nil, fmt.Errorf("atom too large: %d", a)
		}
		if want > 0 && uint64(len(out))+run > uint64(want) {
			return nil, fmt.Errorf("run overflows grid of %d cells", want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, atom.Atom(a))
		}
	}
	if want > 0 && len(out) != want {
		return nil, fmt.Errorf("decoded %d cells want %d", len(out), want)
	}
	return out, nil
}
