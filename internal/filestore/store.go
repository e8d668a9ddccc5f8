package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Store archives the files documents were uploaded from. Keys are flat
// names; Open reports a missing key with fs.ErrNotExist. Deleting a missing
// key is not an error.
type Store interface {
	Type() string
	Save(ctx context.Context, key string, r io.ReadSeeker, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type Factory func(args interface{}) (Store, error)

var ErrInvalidKey = errors.New("invalid file key")

// factories is filled by init functions only, so reads need no lock.
var factories = map[string]Factory{}

func Register(name string, factory Factory) {
	if factory == nil {
		return
	}
	factories[strings.ToLower(strings.TrimSpace(name))] = factory
}

func New(typ string, data map[string]interface{}) (Store, error) {
	name := strings.ToLower(strings.TrimSpace(typ))
	if name == "" {
		return nil, fmt.Errorf("file_store.type is required")
	}
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unsupported file store type: %s", typ)
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return factory(data)
}

func checkKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func decodeConfig(args interface{}, dst interface{}) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode file store config: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode file store config: %w", err)
	}
	return nil
}
