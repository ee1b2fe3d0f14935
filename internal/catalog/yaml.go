package catalog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// File is the YAML layout of a catalog file.
type File struct {
	Companies []model.Company `yaml:"companies"`
}

// LoadFile reads and validates a catalog file.
func LoadFile(path string) ([]model.Company, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a catalog document. Unknown fields are
// rejected so typos in hand-written files surface early.
func Parse(r io.Reader) ([]model.Company, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc File
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	for i := range doc.Companies {
		c := &doc.Companies[i]
		if c.ID == "" || c.Name == "" {
			return nil, fmt.Errorf("company %d: id and name are required", i)
		}
		if strings.Contains(c.ID, Separator) {
			return nil, fmt.Errorf("company %s: id must not contain %q", c.ID, Separator)
		}
		for j := range c.Tests {
			t := &c.Tests[j]
			t.CompanyID = c.ID
			if err := Validate(t); err != nil {
				return nil, err
			}
		}
	}
	return doc.Companies, nil
}

// Qualify prefixes test ids with their company so they are routed to the
// remote source.
func Qualify(companies []model.Company) []model.Company {
	for i := range companies {
		c := &companies[i]
		for j := range c.Tests {
			t := &c.Tests[j]
			if !IsRemoteID(t.ID) {
				t.ID = c.ID + Separator + t.ID
			}
			t.Remote = true
		}
	}
	return companies
}
