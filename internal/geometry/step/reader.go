// Package step reads ISO-10303-21 (STEP) exchange files and integrates the
// volume of their planar boundary representations.
package step

import (
	"context"
	"fmt"
	"os"

	"github.com/Simplici0/costcalc/internal/geometry"
)

// Reader implements geometry.Reader for STEP files.
type Reader struct{}

func NewReader() Reader { return Reader{} }

// Read parses the file at path and transfers its solid bodies.
func (Reader) Read(ctx context.Context, path string) (geometry.Solid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read step file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := ParseContext(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return Transfer(f)
}
