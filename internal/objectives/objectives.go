// Package objectives carries the built-in demonstration problems the
// optimization service and the evaluation CLI expose by name. Each
// problem bundles a parameter list, KPI specifications, and the
// objective function over the translated parameter values.
package objectives

import (
	"fmt"
	"sort"

	"github.com/optivault/PAREX/internal/mco"
)

// Problem is one ready-to-run optimization setup.
type Problem struct {
	Name        string
	Description string
	Params      []mco.Param
	KPIs        []mco.KPISpec
	Evaluate    mco.ObjectiveFunc
}

// Catalog maps problem names to their setups. Callers construct one and
// hand it to the server or CLI; there is no package-level catalog.
type Catalog struct {
	problems map[string]Problem
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{problems: make(map[string]Problem)}
}

// DefaultCatalog returns a catalog with every problem from this package
// registered.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	c.MustRegister(GridValley())
	c.MustRegister(TwoGaussians())
	c.MustRegister(Gauss2D())
	return c
}

// Register adds a problem under its name.
func (c *Catalog) Register(p Problem) error {
	if p.Name == "" {
		return fmt.Errorf("problem name must not be empty")
	}
	if p.Evaluate == nil {
		return fmt.Errorf("problem %q has no objective function", p.Name)
	}
	if _, exists := c.problems[p.Name]; exists {
		return fmt.Errorf("problem %q already registered", p.Name)
	}
	c.problems[p.Name] = p
	return nil
}

// MustRegister is Register that panics on error. Intended for wiring up
// catalogs at startup.
func (c *Catalog) MustRegister(p Problem) {
	if err := c.Register(p); err != nil {
		panic(err)
	}
}

// Get looks up the named problem.
func (c *Catalog) Get(name string) (Problem, error) {
	p, ok := c.problems[name]
	if !ok {
		return Problem{}, fmt.Errorf("unknown objective %q, registered: %v", name, c.Names())
	}
	return p, nil
}

// Names lists registered problem names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.problems))
	for name := range c.problems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
