package transforms

import (
	"fmt"
	"strings"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/pkg/errors"
)

// ErrMissingKey Transform expects key which is absent in results
var ErrMissingKey = errors.New("missing key in results")

// Results Intermediate dictionary passed through the data pipeline.
// Images are kept as image.Image until PackEditInputs turns them into tensors.
type Results map[string]interface{}

// Clone Returns shallow copy
func (r Results) Clone() Results {
	out := make(Results, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Transform Single pipeline stage
type Transform interface {
	Transform(r Results) (Results, error)
}

// Func Adapter to use ordinary functions as Transform
type Func func(r Results) (Results, error)

// Transform Calls f(r)
func (f Func) Transform(r Results) (Results, error) { return f(r) }

// Registry Transforms available to dataset pipelines
var Registry = registry.New[Transform]("transform")

// Build Creates single transform from its record
func Build(rec registry.Record) (Transform, error) {
	return Registry.Build(rec)
}

// Pipeline Sequence of transforms applied in order
type Pipeline struct {
	stages []Transform
	names  []string
}

// Compose Builds pipeline from records
func Compose(recs []registry.Record) (*Pipeline, error) {
	p := &Pipeline{
		stages: make([]Transform, 0, len(recs)),
		names:  make([]string, 0, len(recs)),
	}
	for i, rec := range recs {
		t, err := Build(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline stage #%d", i)
		}
		typ, _ := rec.Type()
		p.stages = append(p.stages, t)
		p.names = append(p.names, typ)
	}
	return p, nil
}

// NewPipeline Creates pipeline from already built transforms
func NewPipeline(stages ...Transform) *Pipeline {
	names := make([]string, len(stages))
	for i := range stages {
		names[i] = fmt.Sprintf("%T", stages[i])
	}
	return &Pipeline{stages: stages, names: names}
}

// Len Number of stages
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Transform Runs every stage
func (p *Pipeline) Transform(r Results) (Results, error) {
	var err error
	for i, stage := range p.stages {
		r, err = stage.Transform(r)
		if err != nil {
			return nil, errors.Wrapf(err, "[%s] stage #%d", p.names[i], i)
		}
		if r == nil {
			return nil, errors.Errorf("[%s] stage #%d returned nil results", p.names[i], i)
		}
	}
	return r, nil
}

func (p *Pipeline) String() string {
	return "Pipeline(" + strings.Join(p.names, " -> ") + ")"
}

func init() {
	Registry.MustRegister("LoadPairedImageFromFile", func(rec registry.Record) (Transform, error) { return newLoadPairedImage(rec) })
	Registry.MustRegister("Resize", func(rec registry.Record) (Transform, error) { return newResize(rec) })
	Registry.MustRegister("Flip", func(rec registry.Record) (Transform, error) { return newFlip(rec) })
	Registry.MustRegister("KeyMapper", func(rec registry.Record) (Transform, error) { return newKeyMapper(rec) })
	Registry.MustRegister("PackEditInputs", func(rec registry.Record) (Transform, error) { return newPackEditInputs(rec) })
}
