package observerproto

import (
	"bytes"
	"testing"
)

func TestMarshal_CBORUsesJSONFieldNames(t *testing.T) {
	in := CellsMsg{
		Type:            "CELLS",
		ProtocolVersion: Version,
		Tick:            7,
		Cells:           []CellDelta{{Offs: 3, Atom: 0x2000}},
	}
	b, err := Marshal(EncodingCBOR, in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(b, []byte("protocol_version")) {
		t.Fatalf("cbor frame should use json field names")
	}
	var out CellsMsg
	if err := Unmarshal(EncodingCBOR, b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Tick != 7 || len(out.Cells) != 1 || out.Cells[0] != in.Cells[0] {
		t.Fatalf("got %+v", out)
	}

	again, _ := Marshal(EncodingCBOR, in)
	if !bytes.Equal(b, again) {
		t.Fatalf("canonical cbor should be deterministic")
	}
}

func TestMarshal_UnknownEncoding(t *testing.T) {
	if _, err := Marshal("xml", CellsMsg{}); err == nil {
		t.Fatalf("expected error")
	}
	if ValidEncoding("xml") || !ValidEncoding("") || !ValidEncoding(EncodingCBOR) {
		t.Fatalf("ValidEncoding mismatch")
	}
}
