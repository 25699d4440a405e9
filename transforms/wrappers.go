package transforms

import (
	"sort"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/pkg/errors"
)

// KeyMapper Renames result keys for nested transforms and maps their outputs back.
//
// Mapping is inner key -> outer key: inner transforms see results[outer] under the inner name.
// Remapping is inner key -> outer key for outputs. When Remapping is omitted it equals Mapping.
// Output keys mentioned in neither table are copied as is.
type KeyMapper struct {
	Mapping   map[string]string
	Remapping map[string]string
	inner     *Pipeline
}

func newKeyMapper(rec registry.Record) (*KeyMapper, error) {
	mapping, err := rec.StringMap("mapping")
	if err != nil {
		return nil, err
	}
	remapping, err := rec.StringMap("remapping")
	if err != nil {
		return nil, err
	}
	autoRemap, err := rec.Bool("auto_remap", remapping == nil)
	if err != nil {
		return nil, err
	}
	if remapping == nil && autoRemap {
		remapping = make(map[string]string, len(mapping))
		for k, v := range mapping {
			remapping[k] = v
		}
	}
	nested, err := rec.Records("transforms")
	if err != nil {
		return nil, err
	}
	t := &KeyMapper{Mapping: mapping, Remapping: remapping}
	if len(nested) > 0 {
		if t.inner, err = Compose(nested); err != nil {
			return nil, errors.Wrap(err, "KeyMapper transforms")
		}
	}
	return t, nil
}

// Transform Applies mapping, nested transforms and remapping
func (t *KeyMapper) Transform(r Results) (Results, error) {
	in := r.Clone()
	for _, innerKey := range sortedKeys(t.Mapping) {
		outerKey := t.Mapping[innerKey]
		v, ok := r[outerKey]
		if !ok {
			return nil, errors.Wrapf(ErrMissingKey, "'%s' mapped to '%s'", outerKey, innerKey)
		}
		in[innerKey] = v
	}
	produced := in
	if t.inner != nil {
		var err error
		if produced, err = t.inner.Transform(in); err != nil {
			return nil, err
		}
	}
	out := r.Clone()
	for k, v := range produced {
		if outerKey, ok := t.Remapping[k]; ok {
			out[outerKey] = v
			continue
		}
		if _, isInner := t.Mapping[k]; isInner {
			continue
		}
		out[k] = v
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
