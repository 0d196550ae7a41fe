package distpool

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Codec converts resources to and from the byte representation stored in
// the shared idle list.
type Codec[T any] interface {
	Marshal(resource T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// JSONCodec returns the default codec, which stores resources as JSON.
func JSONCodec[T any]() Codec[T] {
	return jsonCodec[T]{}
}

type jsonCodec[T any] struct{}

func (jsonCodec[T]) Marshal(resource T) ([]byte, error) {
	data, err := json.Marshal(resource)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource: %w", err)
	}
	return data, nil
}

func (jsonCodec[T]) Unmarshal(data []byte) (T, error) {
	var resource T
	if err := json.Unmarshal(data, &resource); err != nil {
		return resource, fmt.Errorf("failed to decode resource: %w", err)
	}
	return resource, nil
}
