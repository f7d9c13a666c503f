package grpcnet

import (
	"bytes"
	"fmt"

	xdr "github.com/davecgh/go-xdr/xdr2"
	"github.com/go-sod/pkd/internal/byteutil"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype of exchange calls.
const CodecName = "xdr"

func init() {
	encoding.RegisterCodec(codec{})
}

// codec marshals exchange messages with XDR so no generated protobuf code is
// needed.
type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	buf := byteutil.GetBytesBuf()
	defer byteutil.PutBytesBuf(buf)
	if _, err := xdr.Marshal(buf, v); err != nil {
		return nil, fmt.Errorf("grpcnet: marshal %T: %w", v, err)
	}
	return byteutil.Detach(buf), nil
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	if _, err := xdr.Unmarshal(bytes.NewReader(data), v); err != nil {
		return fmt.Errorf("grpcnet: unmarshal %T: %w", v, err)
	}
	return nil
}

func (codec) Name() string {
	return CodecName
}
