// Package prompts holds the LLM prompt templates. Each embedded JSON file maps
// a key to a text/template body.
package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"text/template"
)

//go:embed *.json
var files embed.FS

// Data is the value templates are executed with.
type Data struct {
	Subject string
}

type library map[string]map[string]*template.Template

var (
	loadOnce sync.Once
	loaded   library
	loadErr  error
)

func load() (library, error) {
	loadOnce.Do(func() {
		loaded, loadErr = parseAll(files)
	})
	return loaded, loadErr
}

func parseAll(fsys fs.FS) (library, error) {
	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, err
	}
	lib := make(library, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", name, err)
		}
		var bodies map[string]string
		if err := json.Unmarshal(data, &bodies); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", name, err)
		}
		lib[name] = make(map[string]*template.Template, len(bodies))
		for key, body := range bodies {
			tmpl, err := template.New(name + "/" + key).Option("missingkey=error").Parse(body)
			if err != nil {
				return nil, fmt.Errorf("failed to parse prompt %s/%s: %w", name, key, err)
			}
			lib[name][key] = tmpl
		}
	}
	return lib, nil
}

func lookup(filename, key string) (*template.Template, error) {
	lib, err := load()
	if err != nil {
		return nil, err
	}
	keys, ok := lib[filename]
	if !ok {
		return nil, fmt.Errorf("prompt file %s not found", filename)
	}
	tmpl, ok := keys[key]
	if !ok {
		return nil, fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return tmpl, nil
}

// Render executes the template stored under key in filename.
func Render(filename, key string, data Data) (string, error) {
	tmpl, err := lookup(filename, key)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s/%s: %w", filename, key, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// MustRender is Render for prompts that ship with the binary.
func MustRender(filename, key string, data Data) string {
	out, err := Render(filename, key, data)
	if err != nil {
		panic(err)
	}
	return out
}
