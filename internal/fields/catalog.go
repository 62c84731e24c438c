/**
 * Field Catalog
 *
 * Read-only list of assignable contact fields with bilingual labels.
 * Supplied by the backend; a pending or failed catalog is represented by
 * an empty Catalog whose labels fall back to the raw field identifier.
 */

package fields

// Well-known field names produced by the auto-detector.
const (
	Email       = "email"
	Website     = "website"
	Phone       = "phone"
	PhoneMobile = "phone_mobile"
	Address     = "address"
	Position    = "position"
	Company     = "company"
)

// Field is one catalog entry.
type Field struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	LabelEN string `json:"label_en"`
}

// Catalog is an ordered, immutable set of fields.
type Catalog struct {
	fields      []Field
	index       map[string]int
	loaded      bool
	unavailable bool
}

// NewCatalog builds a loaded catalog. Duplicate names keep the first entry.
func NewCatalog(list []Field) *Catalog {
	c := &Catalog{
		fields: make([]Field, 0, len(list)),
		index:  make(map[string]int, len(list)),
		loaded: true,
	}
	for _, f := range list {
		if f.Name == "" {
			continue
		}
		if _, dup := c.index[f.Name]; dup {
			continue
		}
		c.index[f.Name] = len(c.fields)
		c.fields = append(c.fields, f)
	}
	return c
}

// Pending returns the empty catalog used before the first load finishes.
func Pending() *Catalog {
	return &Catalog{index: map[string]int{}}
}

// Unavailable returns the empty catalog used after a failed load.
func Unavailable() *Catalog {
	return &Catalog{index: map[string]int{}, unavailable: true}
}

// Available reports whether the catalog has not failed to load.
// A pending catalog is available.
func (c *Catalog) Available() bool {
	return c != nil && !c.unavailable
}

// Loaded reports whether the field list came from a successful load.
// Only a loaded catalog can tell that a field name is unknown.
func (c *Catalog) Loaded() bool {
	return c != nil && c.loaded
}

// Fields returns a copy of the entries in catalog order.
func (c *Catalog) Fields() []Field {
	if c == nil {
		return nil
	}
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// Lookup returns the field with the given name.
func (c *Catalog) Lookup(name string) (Field, bool) {
	if c == nil {
		return Field{}, false
	}
	i, ok := c.index[name]
	if !ok {
		return Field{}, false
	}
	return c.fields[i], true
}

// Contains reports whether name is an assignable field.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Label returns the display label for name in the requested language
// ("en" selects LabelEN). Unknown names and empty labels render as the
// raw identifier.
func (c *Catalog) Label(name, lang string) string {
	f, ok := c.Lookup(name)
	if !ok {
		return name
	}
	label := f.Label
	if lang == "en" && f.LabelEN != "" {
		label = f.LabelEN
	}
	if label == "" {
		return name
	}
	return label
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.fields)
}
