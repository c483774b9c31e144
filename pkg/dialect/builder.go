package dialect

import (
	"strings"

	"github.com/leapstack-labs/ui4t/pkg/core"
)

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
	config  *core.DialectConfig
}

// NewDialect creates a new dialect builder with the given name and
// ANSI defaults (double-quoted identifiers, doubled-quote string escapes).
func NewDialect(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			name: name,
			identifiers: core.IdentifierConfig{
				Quote:    `"`,
				QuoteEnd: `"`,
				Escape:   `""`,
			},
			stringEscape: core.EscapeDoubledQuote,
			addressing:   core.AddressSchemaTable,
			typeNames:    make(map[core.SemanticType]string),
			typeLookup:   make(map[string]core.SemanticType),
			operations:   make(map[core.OperationKind]struct{}),
			features:     make(map[core.Feature]struct{}),
		},
	}
}

// New creates a dialect builder from a DialectConfig.
// Type names, operations and features from cfg are wired in Build.
func New(cfg *core.DialectConfig) *Builder {
	b := NewDialect(cfg.Name)
	b.config = cfg
	if cfg.Identifiers.Quote != "" {
		b.dialect.identifiers = cfg.Identifiers
	}
	b.dialect.stringEscape = cfg.Strings
	b.dialect.addressing = cfg.Addressing
	b.dialect.catalog = cfg.Catalog
	b.dialect.defaultSchema = cfg.DefaultSchema
	return b
}

// Identifiers configures identifier quoting.
func (b *Builder) Identifiers(quote, quoteEnd, escape string) *Builder {
	b.dialect.identifiers = core.IdentifierConfig{
		Quote:    quote,
		QuoteEnd: quoteEnd,
		Escape:   escape,
	}
	return b
}

// StringEscape sets how quotes inside string literals are escaped.
func (b *Builder) StringEscape(style core.StringEscapeStyle) *Builder {
	b.dialect.stringEscape = style
	return b
}

// Addressing sets how tables are qualified.
func (b *Builder) Addressing(style core.AddressingStyle) *Builder {
	b.dialect.addressing = style
	return b
}

// Catalog sets the top-level namespace.
func (b *Builder) Catalog(catalog string) *Builder {
	b.dialect.catalog = catalog
	return b
}

// DefaultSchema sets the default schema name.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.dialect.defaultSchema = schema
	return b
}

// TypeName maps a semantic type to the dialect's type name. The name is also
// registered for reverse lookup.
func (b *Builder) TypeName(t core.SemanticType, name string) *Builder {
	b.dialect.typeNames[t] = name
	b.dialect.typeLookup[normalizeTypeName(name)] = t
	return b
}

// TypeAliases registers additional catalog type names that map to t.
func (b *Builder) TypeAliases(t core.SemanticType, names ...string) *Builder {
	for _, name := range names {
		b.dialect.typeLookup[normalizeTypeName(name)] = t
	}
	return b
}

// Operations adds supported operation kinds.
func (b *Builder) Operations(kinds ...core.OperationKind) *Builder {
	for _, k := range kinds {
		b.dialect.operations[k] = struct{}{}
	}
	return b
}

// Features adds optional SQL capabilities.
func (b *Builder) Features(features ...core.Feature) *Builder {
	for _, f := range features {
		b.dialect.features[f] = struct{}{}
	}
	return b
}

// CastHook overrides how casts are rendered.
func (b *Builder) CastHook(fn CastFunc) *Builder {
	b.dialect.cast = fn
	return b
}

// JSONExtractHook overrides how JSON paths are extracted.
func (b *Builder) JSONExtractHook(fn JSONExtractFunc) *Builder {
	b.dialect.jsonExtract = fn
	return b
}

// JSONKindHook sets how the JSON kind of a path value is tested.
func (b *Builder) JSONKindHook(fn JSONKindFunc) *Builder {
	b.dialect.jsonKind = fn
	return b
}

// Build returns the constructed dialect.
// If the builder was created with New(cfg), config type names, operations
// and features are applied first; explicit builder calls win for type names.
func (b *Builder) Build() *Dialect {
	cfg := b.config
	if cfg == nil {
		return b.dialect
	}
	for t, name := range cfg.TypeNames {
		if _, set := b.dialect.typeNames[t]; !set {
			b.dialect.typeNames[t] = name
		}
		key := normalizeTypeName(name)
		if _, set := b.dialect.typeLookup[key]; !set {
			b.dialect.typeLookup[key] = t
		}
	}
	b.Operations(cfg.Operations...)
	b.Features(cfg.Features...)
	b.config = nil
	return b.dialect
}

// String implements fmt.Stringer for debugging.
func (d *Dialect) String() string {
	var feats []string
	for _, f := range d.Config().Features {
		feats = append(feats, string(f))
	}
	return d.name + "[" + strings.Join(feats, ",") + "]"
}
