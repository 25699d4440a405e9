package pix2pix

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/LdDl/pix2pix-go/dataset"
	"github.com/LdDl/pix2pix-go/logging"
	"github.com/LdDl/pix2pix-go/registry"
	"github.com/LdDl/pix2pix-go/structures"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	// PartGenerators Optimizer/state key of generator part
	PartGenerators = "generators"
	// PartDiscriminators Optimizer/state key of discriminator part
	PartDiscriminators = "discriminators"
)

var (
	// ErrBatchShape Batch does not match shape the training graph was built for
	ErrBatchShape = errors.New("batch shape differs from training graph")
	// ErrMissingInput Batch has no input for a domain
	ErrMissingInput = errors.New("missing domain input")
	// ErrMissingSolver Optimizer for model part is not provided
	ErrMissingSolver = errors.New("missing solver")
)

// LossLog Scalar losses of one training step
type LossLog map[string]float64

// Keys Sorted loss names
func (l LossLog) Keys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Model Trainable translation model driven by the runner
type Model interface {
	TrainStep(ctx context.Context, batch *dataset.Batch, solvers map[string]gorgonia.Solver) (LossLog, error)
	ValStep(ctx context.Context, batch *dataset.Batch) ([]*structures.DataSample, error)
	TestStep(ctx context.Context, batch *dataset.Batch) ([]*structures.DataSample, error)
	State() (*State, error)
	LoadState(s *State) error
	Close() error
}

// Models Registry of model types
var Models = registry.New[Model]("model")

func init() {
	Models.MustRegister("Pix2Pix", func(rec registry.Record) (Model, error) { return NewPix2PixFromRecord(rec) })
}

// Pix2Pix Conditional GAN translating images of source domain into target domain.
//
// Generator sees source image, discriminator sees (source, target) or (source, fake) pairs
// concatenated along channel axis. Generator loss is BCE(D(source, fake), 1) + PixelLossWeight * L1(fake, target).
// Graphs are built on first batch since their shapes depend on input size.
//
type Pix2Pix struct {
	DefaultDomain    string
	ReachableDomains []string
	RelatedDomains   []string
	PixelLossWeight  float64
	Preprocessor     *DataPreprocessor

	sourceDomain string
	logger       zerolog.Logger

	mu sync.Mutex

	genArch  Architecture
	discArch Architecture
	// templates hold weights until training graphs exist
	genTemplate  *Network
	discTemplate *Network

	train     *trainGraphs
	inference map[string]*inferenceGraph
}

type trainGraphs struct {
	shape tensor.Shape // (N,C,H,W) of source input

	genGraph     *gorgonia.ExprGraph
	generator    *Network
	gan          *GAN
	genSource    *gorgonia.Node
	genTarget    *gorgonia.Node
	lossGenGAN   gorgonia.Value
	lossGenPixel gorgonia.Value
	lossGen      gorgonia.Value
	tmGen        gorgonia.VM

	discGraph     *gorgonia.ExprGraph
	discriminator *Network
	discInput     *gorgonia.Node
	lossDisc      gorgonia.Value
	tmDisc        gorgonia.VM
}

type inferenceGraph struct {
	graph     *gorgonia.ExprGraph
	input     *gorgonia.Node
	generator *Network
	out       gorgonia.Value
	vm        gorgonia.VM
}

// NewPix2PixFromRecord Builds model from its config record
func NewPix2PixFromRecord(rec registry.Record) (*Pix2Pix, error) {
	genRec, err := rec.Record("generator")
	if err != nil {
		return nil, err
	}
	if genRec == nil {
		return nil, errors.New("Pix2Pix needs generator")
	}
	genArch, err := Generators.Build(genRec)
	if err != nil {
		return nil, err
	}
	discRec, err := rec.Record("discriminator")
	if err != nil {
		return nil, err
	}
	if discRec == nil {
		return nil, errors.New("Pix2Pix needs discriminator")
	}
	discArch, err := Discriminators.Build(discRec)
	if err != nil {
		return nil, err
	}
	preRec, err := rec.Record("data_preprocessor")
	if err != nil {
		return nil, err
	}
	pre, err := newDataPreprocessor(preRec)
	if err != nil {
		return nil, err
	}
	lossCfg, err := rec.Record("loss_config")
	if err != nil {
		return nil, err
	}
	if lossCfg == nil {
		lossCfg = registry.Record{}
	}
	pixelWeight, err := lossCfg.Float("pixel_loss_weight", 100)
	if err != nil {
		return nil, err
	}
	if pixelWeight, err = rec.Float("pixel_loss_weight", pixelWeight); err != nil {
		return nil, err
	}
	defaultDomain, err := rec.String("default_domain", "")
	if err != nil {
		return nil, err
	}
	reachable, err := rec.Strings("reachable_domains")
	if err != nil {
		return nil, err
	}
	related, err := rec.Strings("related_domains")
	if err != nil {
		return nil, err
	}
	seed, err := rec.Int("seed", 0)
	if err != nil {
		return nil, err
	}
	return NewPix2Pix(Pix2PixOptions{
		Seed:             int64(seed),
		DefaultDomain:    defaultDomain,
		ReachableDomains: reachable,
		RelatedDomains:   related,
		PixelLossWeight:  pixelWeight,
		Preprocessor:     pre,
		Generator:        genArch,
		Discriminator:    discArch,
	})
}

// Pix2PixOptions Settings for NewPix2Pix
//
// Seed - seed of weight initialization. Same seed gives same initial weights
//
type Pix2PixOptions struct {
	Seed             int64
	DefaultDomain    string
	ReachableDomains []string
	RelatedDomains   []string
	PixelLossWeight  float64
	Preprocessor     *DataPreprocessor
	Generator        Architecture
	Discriminator    Architecture
}

// NewPix2Pix Validates domains and initializes weights
func NewPix2Pix(opts Pix2PixOptions) (*Pix2Pix, error) {
	if opts.DefaultDomain == "" {
		return nil, errors.New("default_domain is required")
	}
	if len(opts.ReachableDomains) == 0 {
		opts.ReachableDomains = []string{opts.DefaultDomain}
	}
	if !contains(opts.ReachableDomains, opts.DefaultDomain) {
		return nil, errors.Errorf("default_domain '%s' is not reachable %v", opts.DefaultDomain, opts.ReachableDomains)
	}
	if len(opts.RelatedDomains) != 2 || opts.RelatedDomains[0] == opts.RelatedDomains[1] {
		return nil, errors.Errorf("related_domains must hold exactly two distinct domains, got %v", opts.RelatedDomains)
	}
	for _, d := range opts.ReachableDomains {
		if !contains(opts.RelatedDomains, d) {
			return nil, errors.Errorf("reachable domain '%s' is not related %v", d, opts.RelatedDomains)
		}
	}
	if !contains(opts.RelatedDomains, opts.DefaultDomain) {
		return nil, errors.Errorf("default_domain '%s' is not related %v", opts.DefaultDomain, opts.RelatedDomains)
	}
	source := opts.RelatedDomains[0]
	if source == opts.DefaultDomain {
		source = opts.RelatedDomains[1]
	}
	if opts.Generator == nil || opts.Discriminator == nil {
		return nil, errors.New("generator and discriminator are required")
	}
	if want := opts.Generator.InChannels() + opts.Generator.OutChannels(); opts.Discriminator.InChannels() != want {
		return nil, errors.Errorf("discriminator expects %d channels, generator in+out gives %d", opts.Discriminator.InChannels(), want)
	}
	if opts.Preprocessor == nil {
		pre, err := NewDataPreprocessor([]float64{127.5}, []float64{127.5})
		if err != nil {
			return nil, err
		}
		opts.Preprocessor = pre
	}
	if opts.PixelLossWeight < 0 {
		return nil, errors.Errorf("pixel_loss_weight must not be negative, got %v", opts.PixelLossWeight)
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	genTemplate, err := opts.Generator.Define(gorgonia.NewGraph(), "generator", rng)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define generator")
	}
	discTemplate, err := opts.Discriminator.Define(gorgonia.NewGraph(), "discriminator", rng)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define discriminator")
	}
	return &Pix2Pix{
		DefaultDomain:    opts.DefaultDomain,
		ReachableDomains: opts.ReachableDomains,
		RelatedDomains:   opts.RelatedDomains,
		PixelLossWeight:  opts.PixelLossWeight,
		Preprocessor:     opts.Preprocessor,
		sourceDomain:     source,
		logger:           logging.WithComponent("pix2pix"),
		genArch:          opts.Generator,
		discArch:         opts.Discriminator,
		genTemplate:      genTemplate,
		discTemplate:     discTemplate,
		inference:        map[string]*inferenceGraph{},
	}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// SourceDomain Domain generator translates from
func (m *Pix2Pix) SourceDomain() string {
	return m.sourceDomain
}

// SourceKey Input key of source images, e.g. "img_edges"
func (m *Pix2Pix) SourceKey() string { return "img_" + m.sourceDomain }

// TargetKey Input key of target images, e.g. "img_photo"
func (m *Pix2Pix) TargetKey() string { return "img_" + m.DefaultDomain }

// FakeKey Output key of translated images, e.g. "fake_photo"
func (m *Pix2Pix) FakeKey() string { return "fake_" + m.DefaultDomain }

func (m *Pix2Pix) currentGenerator() *Network {
	if m.train != nil {
		return m.train.generator
	}
	return m.genTemplate
}

func (m *Pix2Pix) currentDiscriminator() *Network {
	if m.train != nil {
		return m.train.discriminator
	}
	return m.discTemplate
}

// Learnables Learnable nodes per part. Nodes change once training graphs are built.
func (m *Pix2Pix) Learnables() map[string]gorgonia.Nodes {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]gorgonia.Nodes{
		PartGenerators:     m.currentGenerator().Learnables(),
		PartDiscriminators: m.currentDiscriminator().Learnables(),
	}
}

func (m *Pix2Pix) buildTraining(source, target *tensor.Dense) error {
	shape := source.Shape().Clone()
	n, h, w := shape[0], shape[2], shape[3]
	cs := m.genArch.InChannels()
	ct := m.genArch.OutChannels()
	if shape[1] != cs {
		return errors.Wrapf(ErrBatchShape, "source has %d channels, generator expects %d", shape[1], cs)
	}
	if ts := target.Shape(); len(ts) != 4 || ts[0] != n || ts[1] != ct || ts[2] != h || ts[3] != w {
		return errors.Wrapf(ErrBatchShape, "target shape %v does not fit source %v", []int(ts), []int(shape))
	}
	tg := &trainGraphs{shape: shape}
	var err error

	// Discriminator on its own graph
	tg.discGraph = gorgonia.NewGraph()
	if tg.discriminator, err = m.discTemplate.CloneTo(tg.discGraph, "train"); err != nil {
		return err
	}
	tg.discInput = gorgonia.NewTensor(tg.discGraph, gorgonia.Float64, 4, gorgonia.WithShape(2*n, cs+ct, h, w), gorgonia.WithName("discriminator_input"))
	if err = tg.discriminator.Fwd(tg.discInput); err != nil {
		return errors.Wrap(err, "[Discriminator]")
	}
	discOut := tg.discriminator.Out()
	discShape := discOut.Shape().Clone()
	labels := make([]float64, discShape.TotalSize())
	for i := 0; i < len(labels)/2; i++ {
		labels[i] = 1
	}
	discTarget := gorgonia.NewTensor(tg.discGraph, gorgonia.Float64, discOut.Dims(), gorgonia.WithShape(discShape...), gorgonia.WithName("discriminator_target"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(discShape...), tensor.WithBacking(labels))))
	costDisc, err := BinaryCrossEntropyLoss(discOut, discTarget)
	if err != nil {
		return errors.Wrap(err, "Can't define discriminator loss")
	}
	gorgonia.WithName("discriminator_loss")(costDisc)
	if _, err = gorgonia.Grad(costDisc, tg.discriminator.Learnables()...); err != nil {
		return errors.Wrap(err, "Can't define discriminator gradients")
	}
	gorgonia.Read(costDisc, &tg.lossDisc)

	// Generator followed by frozen discriminator copy
	tg.genGraph = gorgonia.NewGraph()
	if tg.generator, err = m.genTemplate.CloneTo(tg.genGraph, "train"); err != nil {
		return err
	}
	tg.genSource = gorgonia.NewTensor(tg.genGraph, gorgonia.Float64, 4, gorgonia.WithShape(n, cs, h, w), gorgonia.WithName("generator_source"))
	tg.genTarget = gorgonia.NewTensor(tg.genGraph, gorgonia.Float64, 4, gorgonia.WithShape(n, ct, h, w), gorgonia.WithName("generator_target"))
	if err = tg.generator.Fwd(tg.genSource); err != nil {
		return errors.Wrap(err, "[Generator]")
	}
	if tg.gan, err = NewGAN(tg.genGraph, tg.generator, tg.discriminator); err != nil {
		return err
	}
	if err = tg.gan.WithCondition(tg.genSource).Fwd(); err != nil {
		return err
	}
	ganOut := tg.gan.Out()
	ganTarget := gorgonia.NewTensor(tg.genGraph, gorgonia.Float64, ganOut.Dims(), gorgonia.WithShape(ganOut.Shape()...), gorgonia.WithName("gan_discriminator_target"), gorgonia.WithInit(gorgonia.Ones()))
	costGAN, err := BinaryCrossEntropyLoss(ganOut, ganTarget)
	if err != nil {
		return errors.Wrap(err, "Can't define adversarial loss")
	}
	gorgonia.WithName("generator_gan_loss")(costGAN)
	costPixel, err := L1Loss(tg.gan.GeneratorOut(), tg.genTarget)
	if err != nil {
		return errors.Wrap(err, "Can't define pixel loss")
	}
	gorgonia.WithName("generator_pixel_loss")(costPixel)
	weight := gorgonia.NewScalar(tg.genGraph, gorgonia.Float64, gorgonia.WithName("pixel_loss_weight"), gorgonia.WithValue(m.PixelLossWeight))
	weighted, err := gorgonia.Mul(weight, costPixel)
	if err != nil {
		return errors.Wrap(err, "Can't weight pixel loss")
	}
	costGen, err := gorgonia.Add(costGAN, weighted)
	if err != nil {
		return errors.Wrap(err, "Can't sum generator losses")
	}
	gorgonia.WithName("generator_loss")(costGen)
	if _, err = gorgonia.Grad(costGen, tg.gan.GeneratorLearnables()...); err != nil {
		return errors.Wrap(err, "Can't define generator gradients")
	}
	gorgonia.Read(costGAN, &tg.lossGenGAN)
	gorgonia.Read(costPixel, &tg.lossGenPixel)
	gorgonia.Read(costGen, &tg.lossGen)

	tg.tmDisc = gorgonia.NewTapeMachine(tg.discGraph, gorgonia.BindDualValues(tg.discriminator.Learnables()...))
	tg.tmGen = gorgonia.NewTapeMachine(tg.genGraph, gorgonia.BindDualValues(tg.gan.GeneratorLearnables()...))
	m.train = tg
	m.logger.Debug().Ints("shape", []int(shape)).Ints("patch", []int(discShape)).Msg("Training graphs are built")
	return nil
}

func (m *Pix2Pix) inferenceFor(shape tensor.Shape) (*inferenceGraph, error) {
	key := fmt.Sprint([]int(shape))
	if ig, ok := m.inference[key]; ok {
		return ig, nil
	}
	if len(shape) != 4 || shape[1] != m.genArch.InChannels() {
		return nil, errors.Wrapf(ErrBatchShape, "can't translate tensor of shape %v", []int(shape))
	}
	ig := &inferenceGraph{graph: gorgonia.NewGraph()}
	var err error
	if ig.generator, err = m.genTemplate.CloneTo(ig.graph, fmt.Sprintf("inference_%d", len(m.inference))); err != nil {
		return nil, err
	}
	ig.input = gorgonia.NewTensor(ig.graph, gorgonia.Float64, 4, gorgonia.WithShape(shape...), gorgonia.WithName("inference_input"))
	if err = ig.generator.Fwd(ig.input); err != nil {
		return nil, errors.Wrap(err, "[Generator, inference]")
	}
	gorgonia.Read(ig.generator.Out(), &ig.out)
	ig.vm = gorgonia.NewTapeMachine(ig.graph)
	m.inference[key] = ig
	return ig, nil
}

// generate Runs current generator on normalized source (N,C,H,W). Result is in network range.
func (m *Pix2Pix) generate(source *tensor.Dense) (*tensor.Dense, error) {
	ig, err := m.inferenceFor(source.Shape())
	if err != nil {
		return nil, err
	}
	if err = SyncValues(ig.generator.Learnables(), m.currentGenerator().Learnables()); err != nil {
		return nil, err
	}
	if err = gorgonia.Let(ig.input, source); err != nil {
		return nil, errors.Wrap(err, "Can't init input value")
	}
	defer ig.vm.Reset()
	if err = ig.vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "Can't run generator")
	}
	out, ok := ig.out.(*tensor.Dense)
	if !ok {
		return nil, errors.Errorf("generator output is %T", ig.out)
	}
	return out.Clone().(*tensor.Dense), nil
}

// Translate Translates batch of source images (N,C,H,W) in [0, 255] into target domain, [0, 255] as well
func (m *Pix2Pix) Translate(ctx context.Context, source *tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	normalized, err := m.Preprocessor.Normalize(source)
	if err != nil {
		return nil, err
	}
	fake, err := m.generate(normalized)
	if err != nil {
		return nil, err
	}
	return m.Preprocessor.Destruct(fake)
}

func (m *Pix2Pix) domainInput(batch *dataset.Batch, key string) (*tensor.Dense, error) {
	t, ok := batch.Inputs[key]
	if !ok {
		return nil, errors.Wrapf(ErrMissingInput, "'%s'", key)
	}
	return m.Preprocessor.Normalize(t)
}

// TrainStep Updates discriminator on (source, target)=1 and (source, fake)=0 pairs,
// then updates generator against the synced frozen discriminator copy.
func (m *Pix2Pix) TrainStep(ctx context.Context, batch *dataset.Batch, solvers map[string]gorgonia.Solver) (LossLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	solverGen, ok := solvers[PartGenerators]
	if !ok {
		return nil, errors.Wrapf(ErrMissingSolver, "'%s'", PartGenerators)
	}
	solverDisc, ok := solvers[PartDiscriminators]
	if !ok {
		return nil, errors.Wrapf(ErrMissingSolver, "'%s'", PartDiscriminators)
	}
	source, err := m.domainInput(batch, m.SourceKey())
	if err != nil {
		return nil, err
	}
	target, err := m.domainInput(batch, m.TargetKey())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.train == nil {
		if err := m.buildTraining(source, target); err != nil {
			return nil, err
		}
	} else if !source.Shape().Eq(m.train.shape) {
		return nil, errors.Wrapf(ErrBatchShape, "got %v, graph expects %v", []int(source.Shape()), []int(m.train.shape))
	}
	tg := m.train

	fake, err := m.generate(source)
	if err != nil {
		return nil, err
	}
	realPairs, err := source.Concat(1, target)
	if err != nil {
		return nil, errors.Wrap(err, "Can't concat real pairs")
	}
	fakePairs, err := source.Concat(1, fake)
	if err != nil {
		return nil, errors.Wrap(err, "Can't concat fake pairs")
	}
	allPairs, err := realPairs.Concat(0, fakePairs)
	if err != nil {
		return nil, errors.Wrap(err, "Can't concat discriminator batch")
	}
	if err = gorgonia.Let(tg.discInput, allPairs); err != nil {
		return nil, errors.Wrap(err, "Can't init discriminator input")
	}
	if err = tg.tmDisc.RunAll(); err != nil {
		tg.tmDisc.Reset()
		return nil, errors.Wrap(err, "Can't run discriminator")
	}
	if err = solverDisc.Step(gorgonia.NodesToValueGrads(tg.discriminator.Learnables())); err != nil {
		tg.tmDisc.Reset()
		return nil, errors.Wrap(err, "Can't do discriminator step")
	}
	tg.tmDisc.Reset()

	if err = tg.gan.SyncDiscriminator(); err != nil {
		return nil, err
	}
	if err = gorgonia.Let(tg.genSource, source); err != nil {
		return nil, errors.Wrap(err, "Can't init generator input")
	}
	if err = gorgonia.Let(tg.genTarget, target); err != nil {
		return nil, errors.Wrap(err, "Can't init generator target")
	}
	if err = tg.tmGen.RunAll(); err != nil {
		tg.tmGen.Reset()
		return nil, errors.Wrap(err, "Can't run generator")
	}
	if err = solverGen.Step(gorgonia.NodesToValueGrads(tg.generator.Learnables())); err != nil {
		tg.tmGen.Reset()
		return nil, errors.Wrap(err, "Can't do generator step")
	}
	tg.tmGen.Reset()

	log := LossLog{}
	for name, v := range map[string]gorgonia.Value{
		"loss_disc":      tg.lossDisc,
		"loss_gen_gan":   tg.lossGenGAN,
		"loss_gen_pixel": tg.lossGenPixel,
		"loss_gen":       tg.lossGen,
	} {
		f, err := ScalarValue(v)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't read %s", name)
		}
		log[name] = f
	}
	return log, nil
}

// ValStep Translates source images of the batch. Output samples keep metainfo of inputs and hold
// fake_<target>, img_<target> (when present), img_<source>, fake_img and sample_model=orig.
func (m *Pix2Pix) ValStep(ctx context.Context, batch *dataset.Batch) ([]*structures.DataSample, error) {
	return m.predict(ctx, batch)
}

// TestStep Same as ValStep
func (m *Pix2Pix) TestStep(ctx context.Context, batch *dataset.Batch) ([]*structures.DataSample, error) {
	return m.predict(ctx, batch)
}

func (m *Pix2Pix) predict(ctx context.Context, batch *dataset.Batch) ([]*structures.DataSample, error) {
	src, ok := batch.Inputs[m.SourceKey()]
	if !ok {
		return nil, errors.Wrapf(ErrMissingInput, "'%s'", m.SourceKey())
	}
	fake, err := m.Translate(ctx, src)
	if err != nil {
		return nil, err
	}
	tgt, hasTarget := batch.Inputs[m.TargetKey()]
	out := make([]*structures.DataSample, src.Shape()[0])
	for i := range out {
		var sample *structures.DataSample
		if i < len(batch.DataSamples) && batch.DataSamples[i] != nil {
			sample = batch.DataSamples[i].New()
		} else {
			sample = structures.NewDataSample(nil)
		}
		fakePixel, err := pixelAt(fake, i)
		if err != nil {
			return nil, err
		}
		srcPixel, err := pixelAt(src, i)
		if err != nil {
			return nil, err
		}
		if err = sample.Set(m.FakeKey(), fakePixel); err != nil {
			return nil, err
		}
		if err = sample.SetFakeImg(fakePixel); err != nil {
			return nil, err
		}
		if err = sample.Set(m.SourceKey(), srcPixel); err != nil {
			return nil, err
		}
		if hasTarget {
			tgtPixel, err := pixelAt(tgt, i)
			if err != nil {
				return nil, err
			}
			if err = sample.Set(m.TargetKey(), tgtPixel); err != nil {
				return nil, err
			}
		}
		if err = sample.SetSampleModel("orig"); err != nil {
			return nil, err
		}
		out[i] = sample
	}
	return out, nil
}

// pixelAt Copies i-th item of (N,C,H,W) batch into PixelData
func pixelAt(batch *tensor.Dense, i int) (*structures.PixelData, error) {
	item, err := BatchItem(batch, i)
	if err != nil {
		return nil, err
	}
	return structures.NewPixelData(item, nil)
}

// BatchItem Copies i-th item of batch tensor. Result has shape of batch without first axis.
func BatchItem(batch *tensor.Dense, i int) (*tensor.Dense, error) {
	shape := batch.Shape()
	if len(shape) < 2 {
		return nil, errors.Errorf("batch tensor must have 2 dims atleast, got %v", []int(shape))
	}
	if i < 0 || i >= shape[0] {
		return nil, errors.Errorf("item %d out of batch of %d", i, shape[0])
	}
	data, ok := batch.Data().([]float64)
	if !ok {
		return nil, errors.Errorf("expected float64 tensor, got %v", batch.Dtype())
	}
	itemShape := shape[1:].Clone()
	size := itemShape.TotalSize()
	backing := append([]float64(nil), data[i*size:(i+1)*size]...)
	return tensor.New(tensor.WithShape(itemShape...), tensor.WithBacking(backing)), nil
}

// ScalarValue Extracts float64 from scalar graph value
func ScalarValue(v gorgonia.Value) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, errors.New("value is nil")
	case *gorgonia.F64:
		return float64(*t), nil
	case *tensor.Dense:
		data, ok := t.Data().([]float64)
		if ok && len(data) == 1 {
			return data[0], nil
		}
		if f, ok := t.Data().(float64); ok {
			return f, nil
		}
		return 0, errors.Errorf("tensor of shape %v is not a scalar", []int(t.Shape()))
	default:
		return 0, errors.Errorf("unsupported value type %T", v)
	}
}

// State Captures weights of both parts
func (m *Pix2Pix) State() (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gen, err := captureNodes(m.currentGenerator().Learnables())
	if err != nil {
		return nil, err
	}
	disc, err := captureNodes(m.currentDiscriminator().Learnables())
	if err != nil {
		return nil, err
	}
	return &State{Parts: map[string][]TensorState{
		PartGenerators:     gen,
		PartDiscriminators: disc,
	}}, nil
}

// LoadState Restores weights. Parts absent in state are left untouched.
func (m *Pix2Pix) LoadState(s *State) error {
	if s == nil {
		return errors.Wrap(ErrStateMismatch, "nil state")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen, ok := s.Parts[PartGenerators]; ok {
		if err := restoreNodes(m.currentGenerator().Learnables(), gen); err != nil {
			return errors.Wrap(err, PartGenerators)
		}
	}
	if disc, ok := s.Parts[PartDiscriminators]; ok {
		if err := restoreNodes(m.currentDiscriminator().Learnables(), disc); err != nil {
			return errors.Wrap(err, PartDiscriminators)
		}
	}
	return nil
}

// Close Releases tape machines
func (m *Pix2Pix) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.train != nil {
		keep(m.train.tmGen.Close())
		keep(m.train.tmDisc.Close())
	}
	for _, ig := range m.inference {
		keep(ig.vm.Close())
	}
	m.inference = map[string]*inferenceGraph{}
	return firstErr
}
