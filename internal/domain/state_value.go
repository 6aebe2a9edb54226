package domain

// StateValueKind tags how an application global-state value was decoded.
type StateValueKind string

const (
	StateValueUint    StateValueKind = "uint"
	StateValueAddress StateValueKind = "address"
	StateValueText    StateValueKind = "text"
	StateValueEmpty   StateValueKind = "empty"
)

// StateValue is a decoded global-state entry. Text holds the address for
// StateValueAddress and the raw bytes as text for StateValueText.
type StateValue struct {
	Kind StateValueKind `json:"kind"`
	Uint uint64         `json:"uint,omitempty"`
	Text string         `json:"text,omitempty"`
}

// GlobalStateEntry is one key/value pair of an application's global state.
type GlobalStateEntry struct {
	Key   string     `json:"key"`
	Value StateValue `json:"value"`
}

// DecodeStateValue tries a structured address decode for byte values and
// falls back to opaque text.
func DecodeStateValue(raw []byte, number uint64) StateValue {
	if len(raw) > 0 && number == 0 {
		if addr, err := EncodeAddress(raw); err == nil && IsValidAddress(addr) {
			return StateValue{Kind: StateValueAddress, Text: addr}
		}
		return StateValue{Kind: StateValueText, Text: string(raw)}
	}
	if number > 0 {
		return StateValue{Kind: StateValueUint, Uint: number}
	}
	return StateValue{Kind: StateValueEmpty}
}
