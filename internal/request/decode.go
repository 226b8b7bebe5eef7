package request

import (
	"fmt"
	"io"
	"os"

	"sigs.k8s.io/yaml"
)

// Batch is a file of independent connectivity requests.
type Batch struct {
	Connectivity []ConnectivityRequest `json:"connectivity"`
}

// Decode reads one JSON or YAML document into v. Unknown fields are errors.
func Decode(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, v); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	return nil
}

// LoadBatch reads and validates a batch file.
func LoadBatch(path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var b Batch
	if err := Decode(f, &b); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range b.Connectivity {
		if err := b.Connectivity[i].Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return &b, nil
}
