package core

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// AliasTable lists, per canonical field, the normalized header names that
// resolve to it. Order within a field is precedence for JSON input.
type AliasTable struct {
	aliases [fieldCount][]string
	index   map[string]Field
}

var defaultAliases = map[Field][]string{
	FieldKey:         {"dni", "documento", "doc", "key"},
	FieldDisplayName: {"nombre", "apellidoynombre", "socio", "titular", "displayname", "name"},
	FieldCategory:    {"tipoingreso", "tipo", "sector", "categoria", "category"},
	FieldAccessZone:  {"puertaacceso", "puerta", "acceso", "accesszone"},
	FieldLocation:    {"ubicacion", "lugar", "zona", "location"},
	FieldDuesStatus:  {"cuota", "estadocuota", "pago", "duesstatus"},
}

// DefaultAliases returns the built-in table.
func DefaultAliases() *AliasTable {
	t, err := newAliasTable(defaultAliases)
	if err != nil {
		panic(err)
	}
	return t
}

func newAliasTable(src map[Field][]string) (*AliasTable, error) {
	t := &AliasTable{index: make(map[string]Field)}
	for _, f := range AllFields() {
		for _, alias := range src[f] {
			if err := t.add(f, alias); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (t *AliasTable) add(f Field, alias string) error {
	alias = NormalizeHeader(alias)
	if alias == "" {
		return nil
	}
	if owner, ok := t.index[alias]; ok {
		if owner == f {
			return nil
		}
		return fmt.Errorf("alias %q already maps to %s", alias, owner)
	}
	t.index[alias] = f
	t.aliases[f] = append(t.aliases[f], alias)
	return nil
}

// Resolve returns the field a raw header maps to.
func (t *AliasTable) Resolve(header string) (Field, bool) {
	f, ok := t.index[NormalizeHeader(header)]
	return f, ok
}

// Aliases returns the normalized aliases of f in precedence order.
func (t *AliasTable) Aliases(f Field) []string {
	return append([]string(nil), t.aliases[f]...)
}

// LoadAliases reads a YAML file of extra aliases keyed by canonical field
// name and returns the default table extended with them:
//
//	key: [cuil, nro_doc]
//	category: [rol]
func LoadAliases(path string) (*AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases file: %w", err)
	}
	return ParseAliases(data)
}

// ParseAliases is LoadAliases for in-memory YAML.
func ParseAliases(data []byte) (*AliasTable, error) {
	var extra map[string][]string
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("parse aliases: %w", err)
	}

	t := DefaultAliases()
	for name, aliases := range extra {
		f, ok := ParseField(name)
		if !ok {
			return nil, fmt.Errorf("parse aliases: unknown field %q", name)
		}
		for _, a := range aliases {
			if err := t.add(f, a); err != nil {
				return nil, fmt.Errorf("parse aliases: %w", err)
			}
		}
	}
	return t, nil
}

// NormalizeHeader lowercases s and removes diacritics, whitespace,
// underscores and hyphens: "Tipo_Ingreso" and "tipo ingreso" both become
// "tipoingreso", "Ubicación" becomes "ubicacion".
func NormalizeHeader(s string) string {
	s = foldDiacritics(strings.ToLower(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			return -1
		}
		return r
	}, s)
}

// foldDiacritics decomposes s and drops combining marks.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
