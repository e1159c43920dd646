package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Resolver loads the profile named by a host identifier.
type Resolver interface {
	Resolve(ctx context.Context, name string) (*Profile, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, name string) (*Profile, error)

func (f ResolverFunc) Resolve(ctx context.Context, name string) (*Profile, error) {
	return f(ctx, name)
}

// Extensions lists the document formats FileResolver tries, in order.
var Extensions = []string{".json", ".yaml", ".yml"}

// FileResolver reads <Dir>/<name>.json, falling back to YAML.
type FileResolver struct {
	Dir string
}

// NewFileResolver returns a resolver rooted at dir.
func NewFileResolver(dir string) *FileResolver {
	return &FileResolver{Dir: dir}
}

// Resolve implements Resolver.
func (r *FileResolver) Resolve(ctx context.Context, name string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, &Error{Name: name, Err: err}
	}

	for _, ext := range Extensions {
		path := filepath.Join(r.Dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, &Error{Name: name, Err: fmt.Errorf("%w: %v", ErrInvalid, err)}
		}
		return Parse(name, ext, data)
	}
	return nil, &Error{Name: name, Err: fmt.Errorf("%w in %s", ErrNotFound, r.Dir)}
}

// Parse decodes a profile document. ext selects the decoder: ".json" uses
// encoding/json, anything else is treated as YAML.
func Parse(name, ext string, data []byte) (*Profile, error) {
	var doc map[string]any
	var err error
	if strings.EqualFold(ext, ".json") {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, &Error{Name: name, Err: fmt.Errorf("%w: %v", ErrInvalid, err)}
	}
	if doc == nil {
		return nil, &Error{Name: name, Err: fmt.Errorf("%w: empty document", ErrInvalid)}
	}

	hosts, err := hostTable(doc["hosts"])
	if err != nil {
		return nil, &Error{Name: name, Err: err}
	}
	delete(doc, "hosts")
	return New(name, hosts, doc)
}

func hostTable(raw any) (map[string]string, error) {
	entries, ok := raw.(map[string]any)
	if !ok {
		if raw == nil {
			return nil, fmt.Errorf("%w: hosts is missing or empty", ErrInvalid)
		}
		return nil, fmt.Errorf("%w: hosts must be an object, got %T", ErrInvalid, raw)
	}
	hosts := make(map[string]string, len(entries))
	for key, v := range entries {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: host %q must be a string, got %T", ErrInvalid, key, v)
		}
		hosts[key] = s
	}
	return hosts, nil
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty profile name", ErrNotFound)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: profile name must not contain path elements", ErrInvalid)
	}
	return nil
}
