// Package codec registers the JSON gRPC codec the ticket services are carried on.
// Clients select it with grpc.CallContentSubtype(codec.Name); importing the package registers it.
package codec

import (
	"fmt"

	"github.com/goccy/go-json"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Name is the codec name and content-subtype ("application/grpc+json").
const Name = "json"

func init() {
	encoding.RegisterCodec(JSON{})
}

// JSON marshals gRPC messages as JSON.
type JSON struct{}

func (JSON) Name() string { return Name }

func (JSON) Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("codec: cannot marshal nil message")
	}
	return json.Marshal(v)
}

func (JSON) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// CallOption selects the JSON codec for a client call.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(Name)
}
