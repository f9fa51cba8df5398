package index

import (
	"fmt"
	"strings"
)

// tenantCollectionSep joins a base collection name and a tenant id.
const tenantCollectionSep = "__org__"

// Accessor reads one field from an entity. An error or panic makes the
// field resolve to null.
type Accessor[E any] func(e E) (any, error)

// Field adapts an infallible getter to an [Accessor].
func Field[E any](get func(e E) any) Accessor[E] {
	return func(e E) (any, error) { return get(e), nil }
}

// Ref is implemented by fields that reference another record. The payload
// stores the referenced id instead of the value.
type Ref interface {
	RefID() string
}

// Schema declares how entities of type E are indexed.
type Schema[E any] struct {
	// Collection is the base collection name (e.g. "ha_candidates").
	Collection string

	// TenantScoped stores each tenant in its own collection named
	// "<Collection>__org__<tenant>". When false all tenants share Collection
	// and are separated by the payload filter on TenantField.
	TenantScoped bool

	// PayloadFields are copied into the point payload.
	PayloadFields []string

	// DenseFields are rendered to text and joined for the dense embedder.
	DenseFields []string

	// SparseFields are rendered to text and joined for the sparse encoder.
	SparseFields []string

	// Fields maps every field name used above to its accessor.
	Fields map[string]Accessor[E]

	// ID returns the entity's stable identifier.
	ID func(e E) string

	// Tenant returns the owning organization id, or "". May be nil for
	// entity types without a tenant.
	Tenant func(e E) string
}

// Validate reports configuration errors: a missing collection or id
// function, or a listed field without an accessor.
func (s *Schema[E]) Validate() error {
	if s.Collection == "" {
		return fmt.Errorf("index: schema has no collection name")
	}
	if s.ID == nil {
		return fmt.Errorf("index: schema %s has no id function", s.Collection)
	}
	if s.TenantScoped && s.Tenant == nil {
		return fmt.Errorf("index: schema %s is tenant scoped but has no tenant function", s.Collection)
	}
	for _, group := range [][]string{s.PayloadFields, s.DenseFields, s.SparseFields} {
		for _, f := range group {
			if _, ok := s.Fields[f]; !ok {
				return fmt.Errorf("index: schema %s lists field %q without an accessor", s.Collection, f)
			}
		}
	}
	return nil
}

// CollectionName returns the collection holding tenant's points. For a
// tenant-scoped schema an empty tenant has no collection and "" is returned.
func (s *Schema[E]) CollectionName(tenant string) string {
	if !s.TenantScoped {
		return s.Collection
	}
	if tenant == "" {
		return ""
	}
	return s.Collection + tenantCollectionSep + tenant
}

// BaseCollection strips any tenant suffix from a collection name.
func BaseCollection(name string) string {
	base, _, _ := strings.Cut(name, tenantCollectionSep)
	return base
}

// TenantOf returns e's tenant, or "" when the schema has none.
func (s *Schema[E]) TenantOf(e E) string {
	if s.Tenant == nil {
		return ""
	}
	return s.Tenant(e)
}

// Value resolves field on e to a payload-safe value. Unknown fields and
// failing accessors resolve to nil.
func (s *Schema[E]) Value(e E, field string) (v any) {
	acc, ok := s.Fields[field]
	if !ok {
		return nil
	}
	defer func() {
		if recover() != nil {
			v = nil
		}
	}()
	raw, err := acc(e)
	if err != nil {
		return nil
	}
	return normalize(raw)
}

// Payload builds the point payload: every PayloadFields value plus the
// entity id, the base collection name and, when set, the tenant.
func (s *Schema[E]) Payload(e E) map[string]any {
	payload := make(map[string]any, len(s.PayloadFields)+3)
	for _, f := range s.PayloadFields {
		payload[f] = s.Value(e, f)
	}
	payload[IDField] = s.ID(e)
	payload[CollectionField] = s.Collection
	if tenant := s.TenantOf(e); tenant != "" {
		payload[TenantField] = tenant
	}
	return payload
}

// Text renders fields of e into one whitespace-joined blob. Lists contribute
// their elements; empty values are skipped.
func (s *Schema[E]) Text(e E, fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := renderText(s.Value(e, f)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
