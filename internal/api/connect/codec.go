package connect

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// CodecName is the content subtype served and requested ("application/json").
const CodecName = "json"

// jsonCodec marshals plain Go structs, replacing the built-in codec that only
// accepts protobuf messages.
type jsonCodec struct{}

func (jsonCodec) Name() string { return CodecName }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal message")
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, msg), "failed to unmarshal message")
}
