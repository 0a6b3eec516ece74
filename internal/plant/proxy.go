package plant

import (
	"fmt"
	"slices"
	"strings"
	"time"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
)

// Proxy is a typed in-memory view over one plant's properties for one
// locale. Properties keep insertion order and a names entry is always
// present. A Proxy is confined to the goroutine assembling its document.
type Proxy struct {
	id         int64
	identifier string
	createdAt  time.Time
	updatedAt  time.Time

	order []string
	props map[string]*NormalizedProperty
}

// NewProxy creates an empty proxy for plant id.
func NewProxy(id int64) *Proxy {
	p := &Proxy{id: id}
	p.Reset()
	return p
}

// ID returns the plant id.
func (p *Proxy) ID() int64 { return p.id }

// Identifier returns the stable names-hash identifier.
func (p *Proxy) Identifier() string { return p.identifier }

// CreatedAt returns the record creation time.
func (p *Proxy) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns the record modification time.
func (p *Proxy) UpdatedAt() time.Time { return p.updatedAt }

// Set stores values under name. An existing list is replaced when overwrite
// is true and appended to otherwise. A new property gets type string.
func (p *Proxy) Set(name string, values []string, overwrite bool) {
	p.set(name, values, overwrite, "")
}

// SetScalar is Set for a single value.
func (p *Proxy) SetScalar(name, value string, overwrite bool) {
	p.set(name, []string{value}, overwrite, "")
}

// SetTyped is Set with an explicit value type. The type is checked before
// anything changes, so a rejected call leaves the proxy as it was.
func (p *Proxy) SetTyped(name string, values []string, overwrite bool, typ ValueType) error {
	if !typ.Valid() {
		return amerrors.InvalidTypeError(string(typ)).WithDetail("property", name)
	}
	p.set(name, values, overwrite, typ)
	return nil
}

func (p *Proxy) set(name string, values []string, overwrite bool, typ ValueType) {
	prop, ok := p.props[name]
	if !ok {
		prop = &NormalizedProperty{Name: name, Type: TypeString}
		p.props[name] = prop
		p.order = append(p.order, name)
		overwrite = true
	}
	if overwrite {
		prop.Values = slices.Clone(values)
		if prop.Values == nil {
			prop.Values = []string{}
		}
	} else {
		prop.Values = append(prop.Values, values...)
	}
	if typ != "" {
		prop.Type = typ
	}
}

// Get returns the values of name, or an empty list when absent.
func (p *Proxy) Get(name string) []string {
	if prop, ok := p.props[name]; ok {
		return slices.Clone(prop.Values)
	}
	return []string{}
}

// GetAsString joins the values of name with a single space.
func (p *Proxy) GetAsString(name string) string {
	if prop, ok := p.props[name]; ok {
		return strings.Join(prop.Values, " ")
	}
	return ""
}

// Property returns a copy of the normalized property.
func (p *Proxy) Property(name string) (NormalizedProperty, bool) {
	prop, ok := p.props[name]
	if !ok {
		return NormalizedProperty{}, false
	}
	return NormalizedProperty{Name: prop.Name, Type: prop.Type, Values: slices.Clone(prop.Values)}, true
}

// Type returns the value type of name.
func (p *Proxy) Type(name string) (ValueType, bool) {
	if prop, ok := p.props[name]; ok {
		return prop.Type, true
	}
	return "", false
}

// Has reports whether name is set.
func (p *Proxy) Has(name string) bool {
	_, ok := p.props[name]
	return ok
}

// Remove deletes name. Removing names empties it instead, since the names
// entry must always exist.
func (p *Proxy) Remove(name string) error {
	if _, ok := p.props[name]; !ok {
		return amerrors.NotFoundError("property "+name).
			WithDetail("property", name)
	}
	if name == PropNames {
		p.props[PropNames].Values = []string{}
		return nil
	}
	delete(p.props, name)
	p.order = slices.DeleteFunc(p.order, func(n string) bool { return n == name })
	return nil
}

// AllPropertyNames lists property names in insertion order.
func (p *Proxy) AllPropertyNames() []string {
	return slices.Clone(p.order)
}

// Properties returns every normalized property in insertion order.
func (p *Proxy) Properties() []NormalizedProperty {
	out := make([]NormalizedProperty, 0, len(p.order))
	for _, name := range p.order {
		prop, _ := p.Property(name)
		out = append(out, prop)
	}
	return out
}

// Reset drops every property and restores the empty names entry.
func (p *Proxy) Reset() {
	p.order = []string{PropNames}
	p.props = map[string]*NormalizedProperty{
		PropNames: {Name: PropNames, Type: TypeLines, Values: []string{}},
	}
}

// Names returns the plant names.
func (p *Proxy) Names() []string { return p.Get(PropNames) }

// SetNames replaces the plant names.
func (p *Proxy) SetNames(names []string) {
	p.set(PropNames, names, true, TypeLines)
}

// AddName appends name unless it is already present.
func (p *Proxy) AddName(name string) {
	if slices.Contains(p.props[PropNames].Values, name) {
		return
	}
	p.set(PropNames, []string{name}, false, "")
}

// Name returns the first name, or "" when the plant has none.
func (p *Proxy) Name() string {
	if names := p.props[PropNames].Values; len(names) > 0 {
		return names[0]
	}
	return ""
}

// Image returns the first image.
func (p *Proxy) Image() (string, bool) {
	if prop, ok := p.props[PropImages]; ok && len(prop.Values) > 0 {
		return prop.Values[0], true
	}
	return "", false
}

// Spreads reports whether the growth habit says "spreading out".
func (p *Proxy) Spreads() bool {
	return slices.Contains(p.Get(PropGrowthHabit), "spreading out")
}

// CurrentChoice returns the first value of name, for single-choice forms.
func (p *Proxy) CurrentChoice(name string) string {
	if prop, ok := p.props[name]; ok && len(prop.Values) > 0 {
		return prop.Values[0]
	}
	return ""
}

// CurrentChoices returns the values of name as a value→value set.
func (p *Proxy) CurrentChoices(name string) map[string]string {
	choices := make(map[string]string)
	for _, v := range p.Get(name) {
		choices[v] = v
	}
	return choices
}

// String implements fmt.Stringer.
func (p *Proxy) String() string {
	return fmt.Sprintf("Unnamed plant #%d", p.id)
}
