package catalog

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://milkadmin.schemas.local/"

// Schema names, one per list resource.
const (
	SchemaProduct          = "product"
	SchemaBrand            = "brand"
	SchemaCategory         = "category"
	SchemaBlog             = "blog"
	SchemaVoucher          = "voucher"
	SchemaOrder            = "order"
	SchemaUser             = "user"
	SchemaReport           = "report"
	SchemaStockTransaction = "stock_transaction"
	SchemaSupplier         = "supplier"
)

// Schemas validates backend responses against the embedded JSON schemas.
type Schemas struct {
	pages map[string]*jsonschema.Schema
	items map[string]*jsonschema.Schema
}

var (
	defaultSchemas     *Schemas
	defaultSchemasErr  error
	defaultSchemasOnce sync.Once
)

// DefaultSchemas compiles the embedded schemas once.
func DefaultSchemas() (*Schemas, error) {
	defaultSchemasOnce.Do(func() {
		defaultSchemas, defaultSchemasErr = LoadSchemas()
	})
	return defaultSchemas, defaultSchemasErr
}

// LoadSchemas compiles every embedded schema.
func LoadSchemas() (*Schemas, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		raw, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		if err := c.AddResource(schemaBaseURL+e.Name(), bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("load schema %s: %w", e.Name(), err)
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}

	s := &Schemas{
		pages: make(map[string]*jsonschema.Schema, len(names)),
		items: make(map[string]*jsonschema.Schema, len(names)),
	}
	for _, name := range names {
		url := schemaBaseURL + name + ".json"
		if s.pages[name], err = c.Compile(url); err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		if s.items[name], err = c.Compile(url + "#/$defs/item"); err != nil {
			return nil, fmt.Errorf("compile item schema %s: %w", name, err)
		}
	}
	return s, nil
}

// Page returns a response check for a page of the named resource.
func (s *Schemas) Page(name string) func([]byte) error {
	return s.check(s.pages, name)
}

// Item returns a response check for a single record of the named resource.
func (s *Schemas) Item(name string) func([]byte) error {
	return s.check(s.items, name)
}

func (s *Schemas) check(set map[string]*jsonschema.Schema, name string) func([]byte) error {
	schema, ok := set[name]
	return func(body []byte) error {
		if !ok {
			return fmt.Errorf("no schema named %q", name)
		}
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var doc any
		if err := dec.Decode(&doc); err != nil {
			return fmt.Errorf("decode %s response: %w", name, err)
		}
		if err := schema.Validate(doc); err != nil {
			return fmt.Errorf("%s response: %w", name, err)
		}
		return nil
	}
}
