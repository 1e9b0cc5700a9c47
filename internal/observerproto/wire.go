package observerproto

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("observerproto: cbor enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal encodes v for a subscriber that asked for encoding.
func Marshal(encoding string, v any) ([]byte, error) {
	switch encoding {
	case EncodingJSON, "":
		return json.Marshal(v)
	case EncodingCBOR:
		return cborEncMode.Marshal(v)
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}

func Unmarshal(encoding string, b []byte, v any) error {
	switch encoding {
	case EncodingJSON, "":
		return json.Unmarshal(b, v)
	case EncodingCBOR:
		if err := cbor.Unmarshal(b, v); err != nil {
			return fmt.Errorf("observerproto: unmarshal: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown encoding %q", encoding)
	}
}

func ValidEncoding(encoding string) bool {
	return encoding == "" || encoding == EncodingJSON || encoding == EncodingCBOR
}
