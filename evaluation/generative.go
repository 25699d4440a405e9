package evaluation

import (
	"context"
	"sync"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/LdDl/pix2pix-go/structures"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// translationSettings Options shared by TransFID and TransIS
type translationSettings struct {
	prefix         string
	fakeNums       int
	fakeKey        string
	realKey        string
	inceptionStyle string
	sampleModel    string
}

func parseTranslationSettings(rec registry.Record, defaultPrefix string) (translationSettings, error) {
	s := translationSettings{}
	var err error
	if s.prefix, err = rec.String("prefix", defaultPrefix); err != nil {
		return s, err
	}
	if s.fakeNums, err = rec.Int("fake_nums", -1); err != nil {
		return s, err
	}
	if s.fakeNums == 0 {
		return s, errors.New("fake_nums must not be zero")
	}
	if s.fakeKey, err = rec.String("fake_key", structures.FieldFakeImg); err != nil {
		return s, err
	}
	if s.realKey, err = rec.String("real_key", structures.FieldGtImg); err != nil {
		return s, err
	}
	if s.inceptionStyle, err = rec.String("inception_style", "StyleGAN"); err != nil {
		return s, err
	}
	switch s.inceptionStyle {
	case "StyleGAN", "PyTorch":
	default:
		return s, errors.Errorf("inception_style must be StyleGAN or PyTorch, got '%s'", s.inceptionStyle)
	}
	if s.sampleModel, err = rec.String("sample_model", "orig"); err != nil {
		return s, err
	}
	switch s.sampleModel {
	case "orig", "ema":
	default:
		return s, errors.Errorf("sample_model must be orig or ema, got '%s'", s.sampleModel)
	}
	return s, nil
}

// selectSample Picks sub-sample produced by requested model. Samples without sub-samples are used as is.
func selectSample(s *structures.DataSample, model string) *structures.DataSample {
	switch model {
	case "ema":
		if sub := s.Ema(); sub != nil {
			return sub
		}
	case "orig":
		if sub := s.Orig(); sub != nil {
			return sub
		}
	}
	return s
}

// collector Gathers up to limit (real, fake) image pairs
type collector struct {
	mu    sync.Mutex
	limit int
	real  []*tensor.Dense
	fake  []*tensor.Dense
}

func (c *collector) reset() {
	c.mu.Lock()
	c.real, c.fake = nil, nil
	c.mu.Unlock()
}

func (c *collector) full(pending int) bool {
	return c.limit > 0 && len(c.fake)+pending >= c.limit
}

// add Appends pairs of samples. Nothing is appended when any sample misses a field.
func (c *collector) add(settings translationSettings, samples []*structures.DataSample, needReal bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var real, fake []*tensor.Dense
	for _, s := range samples {
		if c.full(len(fake)) {
			break
		}
		sub := selectSample(s, settings.sampleModel)
		f, ok := sub.Pixel(settings.fakeKey)
		if !ok {
			return errors.Wrapf(ErrMissingField, "'%s'", settings.fakeKey)
		}
		if needReal {
			r, ok := sub.Pixel(settings.realKey)
			if !ok {
				return errors.Wrapf(ErrMissingField, "'%s'", settings.realKey)
			}
			real = append(real, r.Data)
		}
		fake = append(fake, f.Data)
	}
	c.real = append(c.real, real...)
	c.fake = append(c.fake, fake...)
	return nil
}

// snapshot Copies of collected slices
func (c *collector) snapshot() (real, fake []*tensor.Dense) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*tensor.Dense(nil), c.real...), append([]*tensor.Dense(nil), c.fake...)
}

// TransFID Frechet Inception Distance between translated and real images of target domain
type TransFID struct {
	settings translationSettings
	backend  InceptionBackend
	samples  collector
}

// NewTransFID Builds metric from record
func NewTransFID(rec registry.Record) (*TransFID, error) {
	settings, err := parseTranslationSettings(rec, "FID-Full")
	if err != nil {
		return nil, errors.Wrap(err, "TransFID")
	}
	return &TransFID{settings: settings, samples: collector{limit: settings.fakeNums}}, nil
}

// Name Metric name
func (m *TransFID) Name() string { return "TransFID" }

// Prefix Prefix of result keys
func (m *TransFID) Prefix() string { return m.settings.prefix }

// SetBackend Injects feature extractor
func (m *TransFID) SetBackend(b InceptionBackend) { m.backend = b }

// Prepare Drops collected images
func (m *TransFID) Prepare(ctx context.Context) error {
	m.samples.reset()
	return nil
}

// Process Collects fake/real pairs until fake_nums is reached
func (m *TransFID) Process(ctx context.Context, samples []*structures.DataSample) error {
	return m.samples.add(m.settings, samples, true)
}

// Evaluate Returns {"fid": value}
func (m *TransFID) Evaluate(ctx context.Context) (map[string]float64, error) {
	if m.backend == nil {
		return nil, ErrNoInceptionBackend
	}
	real, fake := m.samples.snapshot()
	if len(fake) == 0 {
		return nil, ErrNoSamples
	}
	fid, err := m.backend.FID(ctx, real, fake, m.settings.inceptionStyle)
	if err != nil {
		return nil, errors.Wrap(err, "TransFID")
	}
	return map[string]float64{"fid": fid}, nil
}

// TransIS Inception Score of translated images
type TransIS struct {
	settings translationSettings
	backend  InceptionBackend
	samples  collector
}

// NewTransIS Builds metric from record
func NewTransIS(rec registry.Record) (*TransIS, error) {
	settings, err := parseTranslationSettings(rec, "IS-Full")
	if err != nil {
		return nil, errors.Wrap(err, "TransIS")
	}
	return &TransIS{settings: settings, samples: collector{limit: settings.fakeNums}}, nil
}

// Name Metric name
func (m *TransIS) Name() string { return "TransIS" }

// Prefix Prefix of result keys
func (m *TransIS) Prefix() string { return m.settings.prefix }

// SetBackend Injects feature extractor
func (m *TransIS) SetBackend(b InceptionBackend) { m.backend = b }

// Prepare Drops collected images
func (m *TransIS) Prepare(ctx context.Context) error {
	m.samples.reset()
	return nil
}

// Process Collects fake images until fake_nums is reached
func (m *TransIS) Process(ctx context.Context, samples []*structures.DataSample) error {
	return m.samples.add(m.settings, samples, false)
}

// Evaluate Returns {"is": mean, "is_std": std}
func (m *TransIS) Evaluate(ctx context.Context) (map[string]float64, error) {
	if m.backend == nil {
		return nil, ErrNoInceptionBackend
	}
	_, fake := m.samples.snapshot()
	if len(fake) == 0 {
		return nil, ErrNoSamples
	}
	mean, std, err := m.backend.IS(ctx, fake, m.settings.inceptionStyle)
	if err != nil {
		return nil, errors.Wrap(err, "TransIS")
	}
	return map[string]float64{"is": mean, "is_std": std}, nil
}
