package schema

import (
	"context"
	"fmt"
	"sync"
)

// FormatCompiler compiles a raw definition into models. One definition may declare
// several models (e.g. a content type and the components it embeds).
type FormatCompiler interface {
	Compile(ctx context.Context, def *Definition) ([]*Model, error)
}

// FormatRegistry manages compiler implementations for each definition format.
type FormatRegistry struct {
	mu        sync.RWMutex
	compilers map[Format]FormatCompiler
}

// NewFormatRegistry creates a new format registry.
func NewFormatRegistry() *FormatRegistry {
	return &FormatRegistry{
		compilers: make(map[Format]FormatCompiler),
	}
}

// RegisterFormat registers the compiler for a definition format.
func (r *FormatRegistry) RegisterFormat(format Format, compiler FormatCompiler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.compilers[format] = compiler
}

// GetCompiler retrieves the compiler for a given format.
func (r *FormatRegistry) GetCompiler(format Format) (FormatCompiler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	compiler, exists := r.compilers[format]
	if !exists {
		return nil, fmt.Errorf("unsupported schema format: %s", format)
	}
	return compiler, nil
}

// IsFormatSupported checks if a format has been registered.
func (r *FormatRegistry) IsFormatSupported(format Format) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.compilers[format]
	return exists
}
