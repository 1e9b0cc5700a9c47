package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Frame encodings a subscriber may ask for.
const (
	EncodingJSON = "json"
	EncodingCBOR = "cbor"
)

// CellsEncoding names the format of BootstrapResponse.Cells: base64 of
// (atom, run_len) uvarint pairs over the grid in offset order.
const CellsEncoding = "RLE_UVARINT_B64"

// Client -> Server. First message on the observer WS connection. It is always
// JSON; Encoding selects the format of every frame sent back.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Encoding        string `json:"encoding,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	Digest          string      `json:"digest"`
	CellsEncoding   string      `json:"cells_encoding"`
	Cells           string      `json:"cells"`
}

type WorldParams struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	TickRateHz int `json:"tick_rate_hz"`
	PoolSize   int `json:"pool_size"`
}

// Server -> Client. Sent once per tick with every cell written during it.
// A cell written twice in a tick appears twice, in write order.
type CellsMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	VMs             int         `json:"vms"`
	Energy          int64       `json:"energy"`
	Digest          string      `json:"digest"`
	Cells           []CellDelta `json:"cells"`
}

type CellDelta struct {
	Offs int    `json:"offs"`
	Atom uint16 `json:"atom"`
}
