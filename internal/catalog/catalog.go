// Package catalog holds the reference dataset used to price a model: material
// density and cost per kilogram, and the wastage allowance per MOQ tier.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
)

var (
	ErrMaterialNotFound   = errors.New("material not found")
	ErrMOQNotFound        = errors.New("moq not found")
	ErrDatasetUnavailable = errors.New("reference dataset unavailable")
	ErrInvalidDataset     = errors.New("invalid reference dataset")
)

// Column headers recognized in tabular datasets.
const (
	ColumnMaterial = "Material"
	ColumnDensity  = "Density (g/cm3)"
	ColumnCost     = "Cost/kg INR"
	ColumnMOQ      = "MOQ"
	ColumnWastage  = "Wastage_percentage"
)

// MaterialOptions and MOQOptions are the selections offered to users.
var (
	MaterialOptions = []string{"LDPE", "PVC", "ABS", "HDPE", "PU"}
	MOQOptions      = []int{10, 100, 1000, 10000}
)

// Material is one row of the material table.
type Material struct {
	Name      string
	Density   float64 // g/cm3
	CostPerKg float64 // INR
}

// Wastage is one row of the MOQ table.
type Wastage struct {
	MOQ     int
	Percent float64
}

// Source loads a fresh Catalog. Implementations must not cache between calls.
type Source interface {
	Load(ctx context.Context) (*Catalog, error)
}

// Catalog is a keyed view of one dataset load.
type Catalog struct {
	materials  map[string]Material
	wastage    map[int]Wastage
	duplicates []string
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		materials: make(map[string]Material),
		wastage:   make(map[int]Wastage),
	}
}

// AddMaterial registers m unless a row with the same name was already added.
// The first row wins; later ones are remembered as duplicates.
func (c *Catalog) AddMaterial(m Material) bool {
	if _, ok := c.materials[m.Name]; ok {
		c.duplicates = append(c.duplicates, fmt.Sprintf("%s=%s", ColumnMaterial, m.Name))
		return false
	}
	c.materials[m.Name] = m
	return true
}

// AddWastage registers w unless a row with the same MOQ was already added.
func (c *Catalog) AddWastage(w Wastage) bool {
	if _, ok := c.wastage[w.MOQ]; ok {
		c.duplicates = append(c.duplicates, fmt.Sprintf("%s=%d", ColumnMOQ, w.MOQ))
		return false
	}
	c.wastage[w.MOQ] = w
	return true
}

// Material returns the row whose name matches exactly.
func (c *Catalog) Material(name string) (Material, error) {
	m, ok := c.materials[name]
	if !ok {
		return Material{}, fmt.Errorf("%w: %q", ErrMaterialNotFound, name)
	}
	return m, nil
}

// Wastage returns the row for moq.
func (c *Catalog) Wastage(moq int) (Wastage, error) {
	w, ok := c.wastage[moq]
	if !ok {
		return Wastage{}, fmt.Errorf("%w: %d", ErrMOQNotFound, moq)
	}
	return w, nil
}

// Lookup resolves both tables for one selection.
func (c *Catalog) Lookup(material string, moq int) (Material, Wastage, error) {
	m, err := c.Material(material)
	if err != nil {
		return Material{}, Wastage{}, err
	}
	w, err := c.Wastage(moq)
	if err != nil {
		return Material{}, Wastage{}, err
	}
	return m, w, nil
}

// Materials lists the material names present, sorted.
func (c *Catalog) Materials() []string {
	names := lo.Keys(c.materials)
	sort.Strings(names)
	return names
}

// MOQs lists the MOQ tiers present, ascending.
func (c *Catalog) MOQs() []int {
	moqs := lo.Keys(c.wastage)
	sort.Ints(moqs)
	return moqs
}

// Duplicates reports keys that appeared more than once in the dataset.
func (c *Catalog) Duplicates() []string {
	return c.duplicates
}
