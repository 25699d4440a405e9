// Package configs Embedded experiment presets.
package configs

import (
	"embed"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/LdDl/pix2pix-go/config"
	"github.com/pkg/errors"
)

//go:embed _base_/*.yaml _base_/models/*.yaml _base_/datasets/*.yaml pix2pix/*.yaml
var FS embed.FS

// Edges2Shoes Name of the edges -> photo preset
const Edges2Shoes = "pix2pix/pix2pix_vanilla-unet-bn_wo-jitter-flip-4xb1-190kiters_edges2shoes.yaml"

// Load Loads embedded preset by its path, e.g. Edges2Shoes
func Load(name string, overrides ...string) (*config.Config, error) {
	return config.LoadFS(FS, name, overrides...)
}

// Names Lists loadable (non-base) presets
func Names() ([]string, error) {
	names := []string{}
	err := fs.WalkDir(FS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), "_") && p != "." {
			return fs.SkipDir
		}
		if !d.IsDir() && strings.HasSuffix(p, ".yaml") {
			names = append(names, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "Can't list presets")
	}
	sort.Strings(names)
	return names, nil
}

// Resolve Loads config from local file when it exists, otherwise from embedded presets
func Resolve(name string, overrides ...string) (*config.Config, error) {
	if st, err := os.Stat(name); err == nil && !st.IsDir() {
		return config.LoadFile(name, overrides...)
	}
	return Load(name, overrides...)
}
