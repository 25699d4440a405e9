package config

import (
	"bytes"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/LdDl/pix2pix-go/logging"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	baseKey   = "_base_"
	deleteKey = "_delete_"
	appendTag = "!append"

	envWorkDir  = "PIX2PIX_WORK_DIR"
	envLogLevel = "PIX2PIX_LOG_LEVEL"
)

var (
	// ErrBaseCycle Config inherits itself through _base_ chain
	ErrBaseCycle = errors.New("cyclic _base_ inheritance")
	// ErrUnknownConfigField Config has key not present in schema
	ErrUnknownConfigField = errors.New("unknown config field")
	// ErrBadOverride Override is not "dotted.path=value"
	ErrBadOverride = errors.New("malformed override")
)

// appendList Sequence tagged with !append: concatenated to the inherited list instead of replacing it
type appendList []interface{}

// Loader Reads config files, resolves _base_ inheritance, applies overrides and defaults.
type Loader struct {
	readFile  func(name string) ([]byte, error)
	join      func(elem ...string) string
	dir       func(name string) string
	overrides []string
	getenv    func(string) string
}

// NewFSLoader Loader over fs.FS (e.g. embedded presets)
func NewFSLoader(fsys fs.FS) *Loader {
	return &Loader{
		readFile: func(name string) ([]byte, error) { return fs.ReadFile(fsys, name) },
		join:     path.Join,
		dir:      path.Dir,
		getenv:   os.Getenv,
	}
}

// NewFileLoader Loader over local file system
func NewFileLoader() *Loader {
	return &Loader{
		readFile: os.ReadFile,
		join:     filepath.Join,
		dir:      filepath.Dir,
		getenv:   os.Getenv,
	}
}

// WithOverrides Adds "dotted.path=value" overrides applied after inheritance
func (l *Loader) WithOverrides(overrides ...string) *Loader {
	l.overrides = append(l.overrides, overrides...)
	return l
}

// WithEnv Replaces environment lookup. Used in tests.
func (l *Loader) WithEnv(getenv func(string) string) *Loader {
	l.getenv = getenv
	return l
}

// LoadFS Loads config from fs.FS
func LoadFS(fsys fs.FS, name string, overrides ...string) (*Config, error) {
	return NewFSLoader(fsys).WithOverrides(overrides...).Load(name)
}

// LoadFile Loads config from local file
func LoadFile(name string, overrides ...string) (*Config, error) {
	return NewFileLoader().WithOverrides(overrides...).Load(name)
}

// Load Reads, merges, decodes, defaults and validates config
func (l *Loader) Load(name string) (*Config, error) {
	logger := logging.WithComponent("config")

	tree, err := l.LoadRaw(name)
	if err != nil {
		return nil, err
	}
	if err := ApplyOverrides(tree, l.overrides); err != nil {
		return nil, err
	}

	cfg, err := decode(tree)
	if err != nil {
		return nil, errors.Wrapf(err, "config '%s'", name)
	}
	base := filepath.Base(name)
	cfg.Name = strings.TrimSuffix(base, filepath.Ext(base))
	if v := l.getenv(envWorkDir); v != "" {
		cfg.WorkDir = v
	}
	if v := l.getenv(envLogLevel); v != "" {
		cfg.LogLevel = v
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config '%s'", name)
	}
	logger.Debug().Str("config", name).Int("overrides", len(l.overrides)).Msg("config loaded")
	return cfg, nil
}

// LoadRaw Returns merged (but not decoded) config tree
func (l *Loader) LoadRaw(name string) (map[string]interface{}, error) {
	merged, err := l.loadRaw(name, map[string]bool{})
	if err != nil {
		return nil, err
	}
	out, _ := finalize(merged).(map[string]interface{})
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}

func (l *Loader) loadRaw(name string, visiting map[string]bool) (map[string]interface{}, error) {
	if visiting[name] {
		return nil, errors.Wrapf(ErrBaseCycle, "'%s'", name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	data, err := l.readFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read config '%s'", name)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "Can't parse config '%s'", name)
	}
	current := map[string]interface{}{}
	if len(doc.Content) > 0 {
		v, err := nodeToValue(doc.Content[0])
		if err != nil {
			return nil, errors.Wrapf(err, "config '%s'", name)
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("config '%s' must be a mapping, got %T", name, v)
		}
		current = m
	}

	bases, err := baseList(current[baseKey])
	if err != nil {
		return nil, errors.Wrapf(err, "config '%s'", name)
	}
	delete(current, baseKey)

	var merged interface{} = map[string]interface{}{}
	for _, b := range bases {
		baseName := l.join(l.dir(name), b)
		baseTree, err := l.loadRaw(baseName, visiting)
		if err != nil {
			return nil, err
		}
		merged = merge(merged, baseTree)
	}
	merged = merge(merged, current)
	return merged.(map[string]interface{}), nil
}

func baseList(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []interface{}:
		out := make([]string, len(t))
		for i := range t {
			s, ok := t[i].(string)
			if !ok {
				return nil, errors.Errorf("_base_[%d] must be string, got %T", i, t[i])
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, errors.Errorf("_base_ must be string or list, got %T", v)
	}
}

func nodeToValue(n *yaml.Node) (interface{}, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return nodeToValue(n.Alias)
	case yaml.MappingNode:
		out := map[string]interface{}{}
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.Value == "<<" && keyNode.Tag == "!!merge" {
				inherited, err := nodeToValue(valNode)
				if err != nil {
					return nil, err
				}
				if m, ok := inherited.(map[string]interface{}); ok {
					for k, v := range m {
						if _, exists := out[k]; !exists {
							out[k] = v
						}
					}
				}
				continue
			}
			v, err := nodeToValue(valNode)
			if err != nil {
				return nil, err
			}
			out[keyNode.Value] = v
		}
		return out, nil
	case yaml.SequenceNode:
		items := make([]interface{}, len(n.Content))
		for i, c := range n.Content {
			v, err := nodeToValue(c)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		if n.Tag == appendTag {
			return appendList(items), nil
		}
		return items, nil
	default:
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return nil, errors.Wrapf(err, "line %d", n.Line)
		}
		return v, nil
	}
}

// merge Child value on top of base value: maps merge key by key, !append lists extend base lists,
// everything else replaces. A child map with "_delete_: true" replaces the base map.
func merge(base, child interface{}) interface{} {
	switch c := child.(type) {
	case map[string]interface{}:
		b, ok := base.(map[string]interface{})
		if !ok || isTrue(c[deleteKey]) {
			out := make(map[string]interface{}, len(c))
			for k, v := range c {
				if k == deleteKey {
					continue
				}
				out[k] = merge(nil, v)
			}
			return out
		}
		out := make(map[string]interface{}, len(b)+len(c))
		for k, v := range b {
			out[k] = v
		}
		for k, v := range c {
			if k == deleteKey {
				continue
			}
			out[k] = merge(b[k], v)
		}
		return out
	case appendList:
		b, ok := base.([]interface{})
		if !ok {
			return []interface{}(c)
		}
		out := make([]interface{}, 0, len(b)+len(c))
		out = append(out, b...)
		return append(out, c...)
	default:
		return child
	}
}

func isTrue(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

// finalize Removes merge markers left in the tree
func finalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			if k == deleteKey {
				continue
			}
			out[k] = finalize(item)
		}
		return out
	case appendList:
		return finalize([]interface{}(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = finalize(t[i])
		}
		return out
	default:
		return v
	}
}

func decode(tree map[string]interface{}) (*Config, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, errors.Wrap(err, "Can't re-encode merged config")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if strings.Contains(err.Error(), "not found in type") {
			return nil, errors.Wrap(ErrUnknownConfigField, err.Error())
		}
		return nil, errors.Wrap(err, "Can't decode config")
	}
	return &cfg, nil
}

// ApplyOverrides Sets values addressed by dotted paths: "train_cfg.max_iters=1000",
// "custom_hooks.0.interval=10". Values are parsed as YAML.
func ApplyOverrides(tree map[string]interface{}, overrides []string) error {
	for _, o := range overrides {
		eq := strings.Index(o, "=")
		if eq <= 0 {
			return errors.Wrapf(ErrBadOverride, "'%s'", o)
		}
		keyPath, raw := o[:eq], o[eq+1:]
		var value interface{}
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return errors.Wrapf(ErrBadOverride, "'%s': %v", o, err)
		}
		if err := setPath(tree, strings.Split(keyPath, "."), value); err != nil {
			return errors.Wrapf(err, "override '%s'", o)
		}
	}
	return nil
}

func setPath(tree map[string]interface{}, keys []string, value interface{}) error {
	var cur interface{} = tree
	for i, key := range keys {
		last := i == len(keys)-1
		switch node := cur.(type) {
		case map[string]interface{}:
			if last {
				node[key] = value
				return nil
			}
			next, ok := node[key]
			if !ok || next == nil {
				next = map[string]interface{}{}
				node[key] = next
			}
			cur = next
		case []interface{}:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return errors.Wrapf(ErrBadOverride, "bad list index '%s'", key)
			}
			if last {
				node[idx] = value
				return nil
			}
			cur = node[idx]
		default:
			return errors.Wrapf(ErrBadOverride, "'%s' is not a container", strings.Join(keys[:i], "."))
		}
	}
	return nil
}
