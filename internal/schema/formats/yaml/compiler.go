package yaml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vellum-cms/vellum/internal/schema"
	"gopkg.in/yaml.v3"
)

// Compiler compiles YAML (and JSON) schema definitions. A definition may hold several
// models as a multi-document stream.
type Compiler struct{}

// NewCompiler creates a new YAML compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile parses a definition and returns the models it declares.
func (c *Compiler) Compile(ctx context.Context, def *schema.Definition) ([]*schema.Model, error) {
	if def.Format != schema.FormatYaml && def.Format != schema.FormatJSON {
		return nil, fmt.Errorf("expected yaml or json format, got %s", def.Format)
	}

	dec := yaml.NewDecoder(bytes.NewReader(def.Content))
	var models []*schema.Model
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var spec ModelSpec
		err := dec.Decode(&spec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse schema definition: %w", err)
		}

		m, err := spec.ToModel()
		if err != nil {
			return nil, fmt.Errorf("invalid schema %q: %w", spec.UID, err)
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("invalid schema %q: %w", spec.UID, err)
		}
		models = append(models, m)
	}

	if len(models) == 0 {
		return nil, fmt.Errorf("definition %q declares no models", def.Name)
	}
	return models, nil
}
