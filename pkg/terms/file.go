package terms

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the layout of a terms import file:
//
//	terms:
//	  - copa do mundo
//	  - term: eleições
//	    active: false
type File struct {
	Terms []Entry `yaml:"terms"`
}

// Entry is either a bare term (active) or a mapping with an explicit flag.
type Entry struct {
	Term   string `yaml:"term"`
	Active *bool  `yaml:"active"`
}

// UnmarshalYAML accepts both entry forms.
func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.Term = value.Value
		return nil
	}

	type plain Entry
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// LoadFile parses a terms file. Entries default to active.
func LoadFile(path string) ([]Term, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read terms file: %w", err)
	}
	return Parse(data)
}

// Parse decodes terms file content.
func Parse(data []byte) ([]Term, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse terms file: %w", err)
	}

	list := make([]Term, 0, len(f.Terms))
	for i, e := range f.Terms {
		term := Normalize(e.Term)
		if term == "" {
			return nil, fmt.Errorf("parse terms file: entry %d has no term", i+1)
		}
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		list = append(list, Term{Term: term, IsActive: active})
	}
	return list, nil
}
