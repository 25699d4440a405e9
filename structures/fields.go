package structures

import (
	"gorgonia.org/tensor"
)

// GtImg Returns ground truth image or nil
func (s *DataSample) GtImg() *PixelData {
	v, _ := s.data[FieldGtImg].(*PixelData)
	return v
}

// SetGtImg Sets ground truth image
func (s *DataSample) SetGtImg(v *PixelData) error {
	return s.Set(FieldGtImg, v)
}

// PredImg Returns predicted image or nil
func (s *DataSample) PredImg() *PixelData {
	v, _ := s.data[FieldPredImg].(*PixelData)
	return v
}

// SetPredImg Sets predicted image
func (s *DataSample) SetPredImg(v *PixelData) error {
	return s.Set(FieldPredImg, v)
}

// FakeImg Returns generated image or nil
func (s *DataSample) FakeImg() *PixelData {
	v, _ := s.data[FieldFakeImg].(*PixelData)
	return v
}

// SetFakeImg Sets generated image
func (s *DataSample) SetFakeImg(v *PixelData) error {
	return s.Set(FieldFakeImg, v)
}

// ImgLQ Returns low quality input image or nil
func (s *DataSample) ImgLQ() *PixelData {
	v, _ := s.data[FieldImgLQ].(*PixelData)
	return v
}

// SetImgLQ Sets low quality input image
func (s *DataSample) SetImgLQ(v *PixelData) error {
	return s.Set(FieldImgLQ, v)
}

// RefImg Returns reference image or nil
func (s *DataSample) RefImg() *PixelData {
	v, _ := s.data[FieldRefImg].(*PixelData)
	return v
}

// SetRefImg Sets reference image
func (s *DataSample) SetRefImg(v *PixelData) error {
	return s.Set(FieldRefImg, v)
}

// RefLQ Returns low quality reference image or nil
func (s *DataSample) RefLQ() *PixelData {
	v, _ := s.data[FieldRefLQ].(*PixelData)
	return v
}

// SetRefLQ Sets low quality reference image
func (s *DataSample) SetRefLQ(v *PixelData) error {
	return s.Set(FieldRefLQ, v)
}

// GtUnsharp Returns unsharp ground truth or nil
func (s *DataSample) GtUnsharp() *PixelData {
	v, _ := s.data[FieldGtUnsharp].(*PixelData)
	return v
}

// SetGtUnsharp Sets unsharp ground truth
func (s *DataSample) SetGtUnsharp(v *PixelData) error {
	return s.Set(FieldGtUnsharp, v)
}

// Mask Returns inpainting mask or nil
func (s *DataSample) Mask() *PixelData {
	v, _ := s.data[FieldMask].(*PixelData)
	return v
}

// SetMask Sets inpainting mask
func (s *DataSample) SetMask(v *PixelData) error {
	return s.Set(FieldMask, v)
}

// GtHeatmap Returns ground truth heatmap or nil
func (s *DataSample) GtHeatmap() *PixelData {
	v, _ := s.data[FieldGtHeatmap].(*PixelData)
	return v
}

// SetGtHeatmap Sets ground truth heatmap
func (s *DataSample) SetGtHeatmap(v *PixelData) error {
	return s.Set(FieldGtHeatmap, v)
}

// PredHeatmap Returns predicted heatmap or nil
func (s *DataSample) PredHeatmap() *PixelData {
	v, _ := s.data[FieldPredHeatmap].(*PixelData)
	return v
}

// SetPredHeatmap Sets predicted heatmap
func (s *DataSample) SetPredHeatmap(v *PixelData) error {
	return s.Set(FieldPredHeatmap, v)
}

// Trimap Returns matting trimap or nil
func (s *DataSample) Trimap() *PixelData {
	v, _ := s.data[FieldTrimap].(*PixelData)
	return v
}

// SetTrimap Sets matting trimap
func (s *DataSample) SetTrimap(v *PixelData) error {
	return s.Set(FieldTrimap, v)
}

// GtAlpha Returns ground truth alpha matte or nil
func (s *DataSample) GtAlpha() *PixelData {
	v, _ := s.data[FieldGtAlpha].(*PixelData)
	return v
}

// SetGtAlpha Sets ground truth alpha matte
func (s *DataSample) SetGtAlpha(v *PixelData) error {
	return s.Set(FieldGtAlpha, v)
}

// PredAlpha Returns predicted alpha matte or nil
func (s *DataSample) PredAlpha() *PixelData {
	v, _ := s.data[FieldPredAlpha].(*PixelData)
	return v
}

// SetPredAlpha Sets predicted alpha matte
func (s *DataSample) SetPredAlpha(v *PixelData) error {
	return s.Set(FieldPredAlpha, v)
}

// GtFg Returns ground truth foreground or nil
func (s *DataSample) GtFg() *PixelData {
	v, _ := s.data[FieldGtFg].(*PixelData)
	return v
}

// SetGtFg Sets ground truth foreground
func (s *DataSample) SetGtFg(v *PixelData) error {
	return s.Set(FieldGtFg, v)
}

// PredFg Returns predicted foreground or nil
func (s *DataSample) PredFg() *PixelData {
	v, _ := s.data[FieldPredFg].(*PixelData)
	return v
}

// SetPredFg Sets predicted foreground
func (s *DataSample) SetPredFg(v *PixelData) error {
	return s.Set(FieldPredFg, v)
}

// GtBg Returns ground truth background or nil
func (s *DataSample) GtBg() *PixelData {
	v, _ := s.data[FieldGtBg].(*PixelData)
	return v
}

// SetGtBg Sets ground truth background
func (s *DataSample) SetGtBg(v *PixelData) error {
	return s.Set(FieldGtBg, v)
}

// PredBg Returns predicted background or nil
func (s *DataSample) PredBg() *PixelData {
	v, _ := s.data[FieldPredBg].(*PixelData)
	return v
}

// SetPredBg Sets predicted background
func (s *DataSample) SetPredBg(v *PixelData) error {
	return s.Set(FieldPredBg, v)
}

// GtMerged Returns ground truth merged image or nil
func (s *DataSample) GtMerged() *PixelData {
	v, _ := s.data[FieldGtMerged].(*PixelData)
	return v
}

// SetGtMerged Sets ground truth merged image
func (s *DataSample) SetGtMerged(v *PixelData) error {
	return s.Set(FieldGtMerged, v)
}

// GtSamples Returns nested sample with ground truth samples or nil
func (s *DataSample) GtSamples() *DataSample {
	v, _ := s.data[FieldGtSamples].(*DataSample)
	return v
}

// SetGtSamples Sets nested sample with ground truth samples
func (s *DataSample) SetGtSamples(v *DataSample) error {
	return s.Set(FieldGtSamples, v)
}

// Ema Returns nested sample with outputs of EMA model or nil
func (s *DataSample) Ema() *DataSample {
	v, _ := s.data[FieldEma].(*DataSample)
	return v
}

// SetEma Sets nested sample with outputs of EMA model
func (s *DataSample) SetEma(v *DataSample) error {
	return s.Set(FieldEma, v)
}

// Orig Returns nested sample with outputs of original model or nil
func (s *DataSample) Orig() *DataSample {
	v, _ := s.data[FieldOrig].(*DataSample)
	return v
}

// SetOrig Sets nested sample with outputs of original model
func (s *DataSample) SetOrig(v *DataSample) error {
	return s.Set(FieldOrig, v)
}

// Noise Returns noise tensor or nil
func (s *DataSample) Noise() *tensor.Dense {
	v, _ := s.data[FieldNoise].(*tensor.Dense)
	return v
}

// SetNoise Sets noise tensor
func (s *DataSample) SetNoise(v *tensor.Dense) error {
	return s.Set(FieldNoise, v)
}

// SampleModel Returns name of the model produced the sample ("orig", "ema", "ema/orig"). Empty when unset
func (s *DataSample) SampleModel() string {
	v, _ := s.data[FieldSampleModel].(string)
	return v
}

// SetSampleModel Sets sample model name
func (s *DataSample) SetSampleModel(v string) error {
	return s.Set(FieldSampleModel, v)
}

// GtLabel Returns ground truth label or nil
func (s *DataSample) GtLabel() *LabelData {
	v, _ := s.data[FieldGtLabel].(*LabelData)
	return v
}

// SetGtLabelData Sets already formatted ground truth label
func (s *DataSample) SetGtLabelData(v *LabelData) error {
	return s.Set(FieldGtLabel, v)
}
