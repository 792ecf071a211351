package cart

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SchemaVersion is bumped whenever the serialized cart shape changes.
// Version 1 is the bare line array the first storefront release wrote.
const SchemaVersion = 2

var ErrUnknownSchema = errors.New("cart: unknown schema version")

type envelope struct {
	Version int    `json:"v"`
	Items   []Line `json:"items"`
}

// Encode serializes the cart for client-side storage.
func Encode(c *Cart) ([]byte, error) {
	return json.Marshal(envelope{Version: SchemaVersion, Items: c.Lines})
}

// Decode restores a cart blob, accepting every schema version up to the
// current one. Blobs written by a future release are refused rather than
// misread.
func Decode(data []byte) (*Cart, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Version > 0 {
		if env.Version > SchemaVersion {
			return nil, fmt.Errorf("%w: %d", ErrUnknownSchema, env.Version)
		}
		return &Cart{Lines: env.Items}, nil
	}

	// v1 blobs were a bare array.
	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("cart: decode: %w", err)
	}
	return &Cart{Lines: lines}, nil
}
