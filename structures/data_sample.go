package structures

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var (
	// ErrFieldType Value does not match declared type of the field
	ErrFieldType = errors.New("field type mismatch")
	// ErrFieldConflict Same key is used for both data and meta information
	ErrFieldConflict = errors.New("key is already used")
)

// Field Name of well-known data field of a DataSample
type Field = string

// Vocabulary of semantic fields shared between pipeline stages, losses and metrics.
const (
	FieldGtImg       Field = "gt_img"
	FieldGtSamples   Field = "gt_samples"
	FieldNoise       Field = "noise"
	FieldPredImg     Field = "pred_img"
	FieldFakeImg     Field = "fake_img"
	FieldImgLQ       Field = "img_lq"
	FieldRefImg      Field = "ref_img"
	FieldRefLQ       Field = "ref_lq"
	FieldGtUnsharp   Field = "gt_unsharp"
	FieldMask        Field = "mask"
	FieldGtHeatmap   Field = "gt_heatmap"
	FieldPredHeatmap Field = "pred_heatmap"
	FieldTrimap      Field = "trimap"
	FieldGtAlpha     Field = "gt_alpha"
	FieldPredAlpha   Field = "pred_alpha"
	FieldGtFg        Field = "gt_fg"
	FieldPredFg      Field = "pred_fg"
	FieldGtBg        Field = "gt_bg"
	FieldPredBg      Field = "pred_bg"
	FieldGtMerged    Field = "gt_merged"
	FieldSampleModel Field = "sample_model"
	FieldEma         Field = "ema"
	FieldOrig        Field = "orig"
	FieldGtLabel     Field = "gt_label"
)

// Kind Declared value type of a vocabulary field
type Kind uint16

const (
	KindPixel = Kind(iota + 1)
	KindTensor
	KindSample
	KindString
	KindLabel
)

func (k Kind) String() string {
	switch k {
	case KindPixel:
		return "*structures.PixelData"
	case KindTensor:
		return "*tensor.Dense"
	case KindSample:
		return "*structures.DataSample"
	case KindString:
		return "string"
	case KindLabel:
		return "*structures.LabelData"
	default:
		return "any"
	}
}

var vocabulary = map[Field]Kind{
	FieldGtImg:       KindPixel,
	FieldGtSamples:   KindSample,
	FieldNoise:       KindTensor,
	FieldPredImg:     KindPixel,
	FieldFakeImg:     KindPixel,
	FieldImgLQ:       KindPixel,
	FieldRefImg:      KindPixel,
	FieldRefLQ:       KindPixel,
	FieldGtUnsharp:   KindPixel,
	FieldMask:        KindPixel,
	FieldGtHeatmap:   KindPixel,
	FieldPredHeatmap: KindPixel,
	FieldTrimap:      KindPixel,
	FieldGtAlpha:     KindPixel,
	FieldPredAlpha:   KindPixel,
	FieldGtFg:        KindPixel,
	FieldPredFg:      KindPixel,
	FieldGtBg:        KindPixel,
	FieldPredBg:      KindPixel,
	FieldGtMerged:    KindPixel,
	FieldSampleModel: KindString,
	FieldEma:         KindSample,
	FieldOrig:        KindSample,
	FieldGtLabel:     KindLabel,
}

// FieldKind Returns declared kind of vocabulary field. False for free-form keys.
func FieldKind(key string) (Kind, bool) {
	k, ok := vocabulary[key]
	return k, ok
}

// Fields Returns sorted vocabulary
func Fields() []Field {
	out := make([]Field, 0, len(vocabulary))
	for k := range vocabulary {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (k Kind) accepts(value interface{}) bool {
	switch k {
	case KindPixel:
		v, ok := value.(*PixelData)
		return ok && v != nil
	case KindTensor:
		v, ok := value.(*tensor.Dense)
		return ok && v != nil
	case KindSample:
		v, ok := value.(*DataSample)
		return ok && v != nil
	case KindString:
		_, ok := value.(string)
		return ok
	case KindLabel:
		v, ok := value.(*LabelData)
		return ok && v != nil
	default:
		return false
	}
}

// DataSample Container of one data point travelling through the pipeline: created by data loading,
// filled by transforms and the model, consumed by losses and metrics.
//
// Vocabulary fields (gt_img, pred_img, mask, ...) are type checked. Other keys are free-form data
// fields (e.g. "img_photo", "fake_photo"). Meta information lives separately and a key can't be
// both data and meta.
//
type DataSample struct {
	meta Metainfo
	data map[string]interface{}
}

// NewDataSample Creates empty sample with provided meta information
func NewDataSample(meta Metainfo) *DataSample {
	s := &DataSample{meta: Metainfo{}, data: map[string]interface{}{}}
	for k, v := range meta {
		s.meta[k] = v
	}
	return s
}

func (s *DataSample) lazyInit() {
	if s.meta == nil {
		s.meta = Metainfo{}
	}
	if s.data == nil {
		s.data = map[string]interface{}{}
	}
}

// Set Assigns data field. Vocabulary fields must match their declared type.
func (s *DataSample) Set(key string, value interface{}) error {
	s.lazyInit()
	if key == "" {
		return errors.New("empty field name")
	}
	if _, ok := s.meta[key]; ok {
		return errors.Wrapf(ErrFieldConflict, "'%s' is meta information, can't set it as data", key)
	}
	if kind, ok := vocabulary[key]; ok {
		if !kind.accepts(value) {
			return errors.Wrapf(ErrFieldType, "'%s' expects %s, got %T", key, kind, value)
		}
	} else if isNil(value) {
		return errors.Wrapf(ErrFieldType, "'%s' got nil value", key)
	}
	s.data[key] = value
	return nil
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case *PixelData:
		return t == nil
	case *LabelData:
		return t == nil
	case *DataSample:
		return t == nil
	case *tensor.Dense:
		return t == nil
	}
	return false
}

// SetMetainfo Adds meta information. Keys already used as data fields are rejected.
func (s *DataSample) SetMetainfo(meta Metainfo) error {
	s.lazyInit()
	for k := range meta {
		if _, ok := s.data[k]; ok {
			return errors.Wrapf(ErrFieldConflict, "'%s' is data field, can't set it as meta information", k)
		}
	}
	for k, v := range meta {
		s.meta[k] = v
	}
	return nil
}

// Metainfo Returns copy of meta information
func (s *DataSample) Metainfo() Metainfo {
	return Metainfo(s.meta).Clone()
}

// MetainfoKeys Returns sorted meta keys
func (s *DataSample) MetainfoKeys() []string {
	return Metainfo(s.meta).Keys()
}

// Get Returns data or meta value
func (s *DataSample) Get(key string) (interface{}, bool) {
	if v, ok := s.data[key]; ok {
		return v, true
	}
	v, ok := s.meta[key]
	return v, ok
}

// GetOr Returns data or meta value, or fallback when absent
func (s *DataSample) GetOr(key string, fallback interface{}) interface{} {
	if v, ok := s.Get(key); ok {
		return v
	}
	return fallback
}

// Has Reports whether key is present as data or meta
func (s *DataSample) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Delete Removes data field. Returns false when it was absent.
func (s *DataSample) Delete(key string) bool {
	if _, ok := s.data[key]; !ok {
		return false
	}
	delete(s.data, key)
	return true
}

// Keys Returns sorted data keys
func (s *DataSample) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len Number of data fields
func (s *DataSample) Len() int {
	return len(s.data)
}

// Clone Returns shallow copy: field values are shared.
func (s *DataSample) Clone() *DataSample {
	out := NewDataSample(s.meta)
	for k, v := range s.data {
		out.data[k] = v
	}
	return out
}

// New Returns sample with the same meta information and no data
func (s *DataSample) New() *DataSample {
	return NewDataSample(s.meta)
}

// Pixel Returns free-form or vocabulary field holding PixelData
func (s *DataSample) Pixel(key string) (*PixelData, bool) {
	v, ok := s.data[key].(*PixelData)
	return v, ok
}

func (s *DataSample) String() string {
	var b strings.Builder
	b.WriteString("<DataSample(\n\n    META INFORMATION\n")
	for _, k := range s.MetainfoKeys() {
		fmt.Fprintf(&b, "    %s: %v\n", k, s.meta[k])
	}
	b.WriteString("\n    DATA FIELDS\n")
	for _, k := range s.Keys() {
		fmt.Fprintf(&b, "    %s: %s\n", k, describe(s.data[k]))
	}
	b.WriteString(")>")
	return b.String()
}

func describe(v interface{}) string {
	switch t := v.(type) {
	case *PixelData:
		return fmt.Sprintf("PixelData%v", []int(t.Shape()))
	case *LabelData:
		return fmt.Sprintf("LabelData(%v)", t.Label.Data())
	case *tensor.Dense:
		return fmt.Sprintf("Tensor%v", []int(t.Shape()))
	case *DataSample:
		return fmt.Sprintf("DataSample(%s)", strings.Join(t.Keys(), ", "))
	default:
		return fmt.Sprintf("%v", v)
	}
}

// SetGtLabel Formats label value (see FormatLabel) and stores it into gt_label.
// If "num_classes" is present in the sample it bounds label values.
// Existing gt_label keeps its meta information, only label tensor is replaced.
func (s *DataSample) SetGtLabel(value interface{}) error {
	numClasses := UnknownNumClasses
	if v, ok := s.Get(NumClassesKey); ok {
		n, ok := v.(int)
		if !ok {
			return errors.Wrapf(ErrFieldType, "'%s' must be int, got %T", NumClassesKey, v)
		}
		numClasses = n
	}
	label, err := FormatLabel(value, numClasses)
	if err != nil {
		return err
	}
	if existing := s.GtLabel(); existing != nil {
		existing.Label = label.Label
		return nil
	}
	return s.Set(FieldGtLabel, label)
}
