package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/spf13/viper"
	"github.com/tablegate/tablegate/internal/model"
)

// identPattern is a defense-in-depth check on catalog identifiers. The
// catalog file is trusted input, but a descriptor name still ends up inside
// statement text, so it must be a plain identifier.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Catalog is the trusted registry of tables the gateway may touch. It is the
// only source of identifiers for constructed statements: a table or column
// not present here does not exist as far as the gateway is concerned.
//
// The registry is immutable after load; Reload swaps the whole table set
// atomically so in-flight requests keep the descriptor they resolved.
type Catalog struct {
	mu     sync.RWMutex
	path   string
	tables map[string]*model.TableDescriptor
}

type catalogFile struct {
	Tables []tableEntry `mapstructure:"tables"`
}

type tableEntry struct {
	Name       string        `mapstructure:"name"`
	PrimaryKey string        `mapstructure:"primary_key"`
	Columns    []columnEntry `mapstructure:"columns"`
}

type columnEntry struct {
	Name      string `mapstructure:"name"`
	Type      string `mapstructure:"type"`
	Nullable  bool   `mapstructure:"nullable"`
	MaxLength int    `mapstructure:"max_length"`
}

// Load reads the catalog from a trusted YAML file. Request input never
// reaches this path.
func Load(path string) (*Catalog, error) {
	c := &Catalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// New builds a catalog directly from descriptors. Used by tests and
// embedded deployments; Reload is a no-op without a backing file.
func New(descriptors ...*model.TableDescriptor) (*Catalog, error) {
	tables := make(map[string]*model.TableDescriptor, len(descriptors))
	for _, d := range descriptors {
		if err := validateDescriptor(d); err != nil {
			return nil, err
		}
		if _, dup := tables[d.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate table %q", d.Name)
		}
		tables[d.Name] = d
	}
	return &Catalog{tables: tables}, nil
}

// Reload re-reads the backing file and swaps the registry atomically. A
// parse or validation error leaves the current registry untouched.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(c.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("catalog: read %s: %w", c.path, err)
	}
	var file catalogFile
	if err := v.Unmarshal(&file); err != nil {
		return fmt.Errorf("catalog: parse %s: %w", c.path, err)
	}

	tables := make(map[string]*model.TableDescriptor, len(file.Tables))
	for _, entry := range file.Tables {
		desc := &model.TableDescriptor{
			Name:       entry.Name,
			PrimaryKey: entry.PrimaryKey,
			Columns:    make(map[string]model.ColumnSpec, len(entry.Columns)),
		}
		for _, col := range entry.Columns {
			if _, dup := desc.Columns[col.Name]; dup {
				return fmt.Errorf("catalog: table %q: duplicate column %q", entry.Name, col.Name)
			}
			desc.Columns[col.Name] = model.ColumnSpec{
				Type:      model.ColumnType(col.Type),
				Nullable:  col.Nullable,
				MaxLength: col.MaxLength,
			}
		}
		if err := validateDescriptor(desc); err != nil {
			return err
		}
		if _, dup := tables[desc.Name]; dup {
			return fmt.Errorf("catalog: duplicate table %q", desc.Name)
		}
		tables[desc.Name] = desc
	}

	c.mu.Lock()
	c.tables = tables
	c.mu.Unlock()
	return nil
}

// Describe returns the descriptor for name. A table is either fully
// described or absent; there are no partial entries.
func (c *Catalog) Describe(name string) (*model.TableDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	desc, ok := c.tables[name]
	return desc, ok
}

// IsColumnAllowed reports whether column is described for table.
func (c *Catalog) IsColumnAllowed(table, column string) bool {
	desc, ok := c.Describe(table)
	if !ok {
		return false
	}
	_, ok = desc.Column(column)
	return ok
}

// Tables returns all registered table names, sorted.
func (c *Catalog) Tables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validateDescriptor(d *model.TableDescriptor) error {
	if d == nil || d.Name == "" {
		return fmt.Errorf("catalog: table entry missing name")
	}
	if !identPattern.MatchString(d.Name) {
		return fmt.Errorf("catalog: table %q: invalid identifier", d.Name)
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("catalog: table %q: no columns", d.Name)
	}
	if d.PrimaryKey == "" {
		return fmt.Errorf("catalog: table %q: missing primary_key", d.Name)
	}
	if _, ok := d.Columns[d.PrimaryKey]; !ok {
		return fmt.Errorf("catalog: table %q: primary_key %q not among columns", d.Name, d.PrimaryKey)
	}
	for name, spec := range d.Columns {
		if !identPattern.MatchString(name) {
			return fmt.Errorf("catalog: table %q: column %q: invalid identifier", d.Name, name)
		}
		if !model.KnownColumnType(spec.Type) {
			return fmt.Errorf("catalog: table %q: column %q: unknown type %q", d.Name, name, spec.Type)
		}
	}
	return nil
}
