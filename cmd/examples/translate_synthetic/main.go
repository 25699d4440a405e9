package main

import (
	"context"
	"fmt"
	"image/png"
	"math"
	"math/rand"
	"os"
	"time"

	pix2pix "github.com/LdDl/pix2pix-go"
	"github.com/LdDl/pix2pix-go/dataset"
	"github.com/LdDl/pix2pix-go/structures"
	"github.com/LdDl/pix2pix-go/transforms"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var (
	learningRate = 0.0002
	batchSize    = 2
	imgHeight    = 10
	imgWidth     = 9
	imgChannels  = 3
	faceData     = []float64{
		0, 1, 1, 0, 0, 0, 1, 1, 0,
		0, 1, 1, 0, 0, 0, 1, 1, 0,
		0, 1, 1, 0, 0, 0, 1, 1, 0,
		0, 1, 1, 0, 0, 0, 1, 1, 0,
		0, 0, 0, 0, 1, 0, 0, 0, 0,
		0, 0, 0, 0, 1, 0, 0, 0, 0,
		0, 0, 0, 1, 1, 1, 0, 0, 0,
		1, 1, 0, 0, 0, 0, 0, 1, 1,
		0, 1, 1, 1, 0, 1, 1, 1, 0,
		0, 0, 0, 1, 1, 1, 0, 0, 0,
	}
	// Colors of face strokes and background in "photo" domain
	strokeColor     = []float64{250, 200, 20}
	backgroundColor = []float64{30, 60, 160}

	noiseLevel = 20.0
	numIters   = 1500
	evalPrint  = 100
)

// genSyntheticPair Returns (edges, photo) batches: noisy white strokes on black and colored strokes on colored background
func genSyntheticPair(rng *rand.Rand) (*tensor.Dense, *tensor.Dense) {
	plane := imgHeight * imgWidth
	edges := make([]float64, batchSize*imgChannels*plane)
	photo := make([]float64, batchSize*imgChannels*plane)
	noise := pix2pix.NormRandDense(rng, len(edges)).Data().([]float64)
	for b := 0; b < batchSize; b++ {
		for c := 0; c < imgChannels; c++ {
			for i, v := range faceData {
				idx := (b*imgChannels+c)*plane + i
				edges[idx] = math.Max(0, math.Min(255, 255*v+noiseLevel*noise[idx]))
				if v > 0 {
					photo[idx] = strokeColor[c]
				} else {
					photo[idx] = backgroundColor[c]
				}
			}
		}
	}
	shape := []int{batchSize, imgChannels, imgHeight, imgWidth}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(edges)), tensor.New(tensor.WithShape(shape...), tensor.WithBacking(photo))
}

func printFace(data []float64, threshold float64) {
	for x := 0; x < imgHeight; x++ {
		fmt.Printf("\t")
		for y := 0; y < imgWidth; y++ {
			char := "x"
			if data[x*imgWidth+y] < threshold {
				char = " "
			}
			fmt.Printf("%s ", char)
		}
		fmt.Println()
	}
}

func main() {
	// Initialize seed with constant value to reproduce results
	rng := rand.New(rand.NewSource(1337))

	model, err := pix2pix.NewPix2Pix(pix2pix.Pix2PixOptions{
		DefaultDomain:    "photo",
		ReachableDomains: []string{"photo"},
		RelatedDomains:   []string{"photo", "edges"},
		PixelLossWeight:  100,
		Seed:             1337,
		Generator: &pix2pix.SequentialGenerator{
			In:         imgChannels,
			Out:        imgChannels,
			Base:       8,
			NumBlocks:  2,
			Activation: pix2pix.Rectify,
			Init:       pix2pix.XavierInit(1.0),
		},
		Discriminator: &pix2pix.PatchDiscriminator{
			In:         2 * imgChannels,
			Base:       8,
			NumConv:    2,
			Activation: pix2pix.LeakyReLU(0.2),
			Init:       pix2pix.NormalInit(0.02),
		},
	})
	if err != nil {
		panic(err)
	}
	defer model.Close()

	solvers := map[string]gorgonia.Solver{
		pix2pix.PartGenerators:     gorgonia.NewAdamSolver(gorgonia.WithLearnRate(learningRate), gorgonia.WithBeta1(0.5)),
		pix2pix.PartDiscriminators: gorgonia.NewAdamSolver(gorgonia.WithLearnRate(learningRate), gorgonia.WithBeta1(0.5)),
	}

	fmt.Println("Target shape:")
	printFace(faceData, 0.5)

	ctx := context.Background()
	iters := []int{}
	curve := map[string][]float64{}
	st := time.Now()
	for iter := 1; iter <= numIters; iter++ {
		edges, photo := genSyntheticPair(rng)
		batch := &dataset.Batch{
			Inputs:      map[string]*tensor.Dense{model.SourceKey(): edges, model.TargetKey(): photo},
			DataSamples: []*structures.DataSample{structures.NewDataSample(nil), structures.NewDataSample(nil)},
		}
		losses, err := model.TrainStep(ctx, batch, solvers)
		if err != nil {
			panic(err)
		}
		if iter%evalPrint != 0 {
			continue
		}
		iters = append(iters, iter)
		for _, name := range losses.Keys() {
			curve[name] = append(curve[name], losses[name])
		}
		fmt.Printf("Iteration %d:\n", iter)
		fmt.Printf("\tDiscriminator's loss: %.4f\n", losses["loss_disc"])
		fmt.Printf("\tGenerator's loss: %.4f (adversarial %.4f, pixel %.4f)\n", losses["loss_gen"], losses["loss_gen_gan"], losses["loss_gen_pixel"])
		fmt.Printf("\tTaken time: %v\n", time.Since(st))
		st = time.Now()
	}

	// Final test of Generator
	fmt.Println("Start testing generator after final iteration")
	edges, _ := genSyntheticPair(rng)
	fake, err := model.Translate(ctx, edges)
	if err != nil {
		panic(err)
	}
	first, err := pix2pix.BatchItem(fake, 0)
	if err != nil {
		panic(err)
	}
	// Red channel separates strokes (250) from background (30)
	printFace(first.Data().([]float64)[:imgHeight*imgWidth], 140)

	img, err := transforms.ToImage(first)
	if err != nil {
		panic(err)
	}
	f, err := os.Create("translated.png")
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err = png.Encode(f, img); err != nil {
		panic(err)
	}
	if err = pix2pix.PlotLossCurve(iters, curve, "losses.png"); err != nil {
		panic(err)
	}
	fmt.Println("Saved translated.png and losses.png")
}
