package asset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateID   = errors.New("duplicate asset id")
	ErrInvalidPath   = errors.New("invalid asset path")
	ErrInvalidID     = errors.New("invalid asset id")
	ErrCatalogSealed = errors.New("catalog is sealed: loading has started")
	ErrUnknownAsset  = errors.New("unknown asset")
	ErrNotReady      = errors.New("asset resource not ready")
)

// Catalog maps asset IDs to records and, once prepared, to resources.
type Catalog struct {
	records   map[string]*Record
	order     []string
	resources map[string]Resource
	sealed    bool
}

// NewCatalog returns an empty, mutable catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		records:   make(map[string]*Record),
		resources: make(map[string]Resource),
	}
}

// Register appends a record. kind may be KindUnknown; the check stage
// classifies it from the source.
func (c *Catalog) Register(id, path string, kind Kind, opts LoadOptions) (*Record, error) {
	if c.sealed {
		return nil, ErrCatalogSealed
	}
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidID
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path for %q", ErrInvalidPath, id)
	}
	if _, exists := c.records[id]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	opts = opts.withDefaults()
	rec := &Record{
		ID:             id,
		Kind:           kind,
		SourcePath:     path,
		Options:        opts,
		UseCompression: opts.UseCompression && kind != KindStaticImage,
		State:          StateUnchecked,
		order:          len(c.order),
	}
	c.records[id] = rec
	c.order = append(c.order, id)
	return rec, nil
}

// Seal freezes registration. It is called when loading starts.
func (c *Catalog) Seal() { c.sealed = true }

// Sealed reports whether registration is closed.
func (c *Catalog) Sealed() bool { return c.sealed }

// Len returns the number of registered assets.
func (c *Catalog) Len() int { return len(c.order) }

// Lookup returns the record for id.
func (c *Catalog) Lookup(id string) (*Record, bool) {
	rec, ok := c.records[id]
	return rec, ok
}

// At returns the record registered at position i.
func (c *Catalog) At(i int) *Record {
	return c.records[c.order[i]]
}

// IDs returns every asset ID in registration order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// IDsOfKind returns the IDs whose current kind matches, in registration order.
func (c *Catalog) IDsOfKind(kind Kind) []string {
	out := make([]string, 0, len(c.order))
	for _, id := range c.order {
		if c.records[id].Kind == kind {
			out = append(out, id)
		}
	}
	return out
}

// AnimationIDs returns the IDs of all animations.
func (c *Catalog) AnimationIDs() []string { return c.IDsOfKind(KindAnimation) }

// StaticImageIDs returns the IDs of all static images.
func (c *Catalog) StaticImageIDs() []string { return c.IDsOfKind(KindStaticImage) }

// SetResource attaches the materialized resource for id.
func (c *Catalog) SetResource(id string, res Resource) {
	if res == nil {
		return
	}
	c.resources[id] = res
}

// Resource returns the prepared resource for id. On error the Null
// placeholder is returned so careless callers still hold something inert.
func (c *Catalog) Resource(id string) (Resource, error) {
	if _, ok := c.records[id]; !ok {
		return Null, fmt.Errorf("%w: %q", ErrUnknownAsset, id)
	}
	res, ok := c.resources[id]
	if !ok {
		return Null, fmt.Errorf("%w: %q", ErrNotReady, id)
	}
	return res, nil
}

// HasResource reports whether id has been materialized.
func (c *Catalog) HasResource(id string) bool {
	_, ok := c.resources[id]
	return ok
}
