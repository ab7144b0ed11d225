// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/meridianledger/meridian/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load reads a config file, choosing the format by extension.
func Load(file string) (*Config, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, errors.UnknownError.Wrap(err)
	}

	c := new(Config)
	err = c.LoadFromFS(os.DirFS("/"), abs)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFromFS reads a config file from the given filesystem. The file path
// must be absolute; it is resolved within fsys.
func (c *Config) LoadFromFS(fsys fs.FS, file string) error {
	format, err := unmarshallerFor(file)
	if err != nil {
		return err
	}

	f, err := fsys.Open(fsPath(file))
	if err != nil {
		return errors.NotFound.WithFormat("load config: %w", err)
	}
	defer func() { _ = f.Close() }()

	b, err := io.ReadAll(f)
	if err != nil {
		return errors.UnknownError.WithFormat("load config: %w", err)
	}

	c.file = file
	return c.load(b, format, fsys)
}

func (c *Config) load(b []byte, format func([]byte, any) error, fsys fs.FS) error {
	// Decode into a generic value, remap kebab-case keys to camel-case, then
	// pass through JSON to populate the struct
	var v any
	err := format(b, &v)
	if err != nil {
		return errors.EncodingError.WithFormat("load config: %w", err)
	}

	v = remap(v, kebab2camel, nil)
	b, err = json.Marshal(v)
	if err != nil {
		return errors.EncodingError.Wrap(err)
	}

	err = json.Unmarshal(b, c)
	if err != nil {
		return errors.EncodingError.WithFormat("load config: %w", err)
	}

	return c.applyDotEnv(fsys)
}

// Save writes the config back to the file it was loaded from.
func (c *Config) Save() error {
	if c.file == "" {
		return errors.BadRequest.With("not loaded from a file")
	}
	return c.SaveTo(c.file)
}

// SaveTo writes the config to a file, choosing the format by extension.
func (c *Config) SaveTo(file string) error {
	var format func(any) ([]byte, error)
	switch s := filepath.Ext(file); s {
	case ".toml", ".tml", ".ini":
		format = marshalTOML
	case ".yaml", ".yml":
		format = yaml.Marshal
	case ".json":
		format = func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
	default:
		return errors.BadRequest.WithFormat("unknown file type %s", s)
	}

	b, err := c.Marshal(format)
	if err != nil {
		return err
	}
	return os.WriteFile(file, b, 0600)
}

// Marshal encodes the config with the given format, mapping keys back to
// kebab-case.
func (c *Config) Marshal(format func(any) ([]byte, error)) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, errors.EncodingError.Wrap(err)
	}

	var v any
	err = json.Unmarshal(b, &v)
	if err != nil {
		return nil, errors.EncodingError.Wrap(err)
	}

	v = remap(v, camel2kebab, float2int)
	return format(v)
}

func unmarshallerFor(file string) (func([]byte, any) error, error) {
	switch s := filepath.Ext(file); s {
	case ".toml", ".tml", ".ini":
		return toml.Unmarshal, nil
	case ".yaml", ".yml":
		return yaml.Unmarshal, nil
	case ".json":
		return json.Unmarshal, nil
	default:
		return nil, errors.BadRequest.WithFormat("unknown file type %s", s)
	}
}

func marshalTOML(a any) ([]byte, error) {
	b := new(bytes.Buffer)
	err := toml.NewEncoder(b).Encode(a)
	return b.Bytes(), err
}

func (c *Config) applyDotEnv(fsys fs.FS) error {
	if c.DotEnv == nil || !*c.DotEnv {
		return nil
	}

	file := ".env"
	if c.file != "" {
		file = filepath.Join(filepath.Dir(c.file), file)
	}

	var expand func(name string) string
	var errs []error

	f, err := fsys.Open(fsPath(file))
	switch {
	case err == nil:
		defer func() { _ = f.Close() }()

		env, err := godotenv.Parse(f)
		if err != nil {
			return errors.EncodingError.WithFormat("parse %s: %w", file, err)
		}

		expand = func(name string) string {
			value, ok := env[name]
			if ok {
				return value
			}
			errs = append(errs, errors.NotFound.WithFormat("%q is not defined", name))
			return fmt.Sprintf("#!MISSING(%q)", name)
		}

	case errors.Is(err, fs.ErrNotExist):
		// Only an error if the config actually uses ${VAR}
		expand = func(name string) string {
			if len(errs) == 0 {
				errs = append(errs, err)
			}
			return fmt.Sprintf("#!MISSING(%q)", name)
		}

	default:
		return err
	}

	expandEnv(reflect.ValueOf(c), expand)
	return errors.Join(errs...)
}

// fsPath converts an OS path into an fs.FS path rooted at /.
func fsPath(file string) string {
	file = filepath.ToSlash(file)
	return strings.TrimPrefix(file, "/")
}

func remap(v any, mapKey func(string) string, mapValue func(reflect.Value) any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		u := make([]any, rv.Len())
		for i := range u {
			u[i] = remap(rv.Index(i).Interface(), mapKey, mapValue)
		}
		return u

	case reflect.Map:
		u := make(map[string]any, rv.Len())
		for it := rv.MapRange(); it.Next(); {
			u[mapKey(fmt.Sprint(it.Key().Interface()))] = remap(it.Value().Interface(), mapKey, mapValue)
		}
		return u

	default:
		if mapValue != nil {
			return mapValue(rv)
		}
		return v
	}
}

var reKebab = regexp.MustCompile(`-[a-z]`)
var reCamel = regexp.MustCompile(`[a-z][A-Z]+`)

func kebab2camel(s string) string {
	return reKebab.ReplaceAllStringFunc(s, func(s string) string {
		return strings.ToUpper(s[1:])
	})
}

func camel2kebab(s string) string {
	return strings.ToLower(reCamel.ReplaceAllStringFunc(s, func(s string) string {
		return s[:1] + "-" + s[1:]
	}))
}

func float2int(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		// If the float has no fractional part, convert it to an int
		f := v.Float()
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	default:
		if !v.IsValid() {
			return nil
		}
		return v.Interface()
	}
}

func expandEnv(v reflect.Value, expand func(string) string) {
	switch v.Kind() {
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.Expand(v.String(), expand))
		}

	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			expandEnv(v.Elem(), expand)
		}

	case reflect.Slice, reflect.Array:
		for i, n := 0, v.Len(); i < n; i++ {
			expandEnv(v.Index(i), expand)
		}

	case reflect.Map:
		it := v.MapRange()
		for it.Next() {
			expandEnv(it.Key(), expand)
			expandEnv(it.Value(), expand)
		}

	case reflect.Struct:
		typ := v.Type()
		for i, n := 0, typ.NumField(); i < n; i++ {
			if typ.Field(i).IsExported() {
				expandEnv(v.Field(i), expand)
			}
		}
	}
}
