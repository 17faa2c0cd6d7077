package protocol

import "fmt"

// CodecName is the gRPC content subtype used by the login stream.
const CodecName = "srplogin"

// Frame is the value exchanged with gRPC SendMsg/RecvMsg.
type Frame struct {
	Message Message
}

// Codec adapts Marshal/Unmarshal to grpc's encoding.Codec.
type Codec struct{}

// Marshal implements encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	f, ok := v.(*Frame)
	if !ok {
		return nil, fmt.Errorf("protocol: cannot marshal %T", v)
	}
	return Marshal(f.Message)
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	f, ok := v.(*Frame)
	if !ok {
		return fmt.Errorf("protocol: cannot unmarshal into %T", v)
	}
	m, err := Unmarshal(data)
	if err != nil {
		return err
	}
	f.Message = m
	return nil
}

// Name implements encoding.Codec.
func (Codec) Name() string {
	return CodecName
}
