// psdinspect processes a single IFCB sample and prints its size histogram,
// fit and derived values to the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aybabtme/uniplot/histogram"
	"github.com/carbocation/ifcbpsd"
	"github.com/carbocation/ifcbpsd/ifcbdata"
	"github.com/carbocation/ifcbpsd/powerfit"
	"github.com/carbocation/ifcbpsd/psd"
	"github.com/carbocation/ifcbpsd/psdplot"
	"github.com/carbocation/ifcbpsd/tables"
	"github.com/carbocation/ifcbpsd/units"
	"github.com/carbocation/pfx"

	_ "github.com/carbocation/ifcbpsd/compileinfoprint"
)

func main() {
	var featureDir, hdrDir, sample, featureName, pngPath string
	var micronFactor float64
	var startFit, buckets, roi int

	flag.StringVar(&featureDir, "features", "", "Directory (local or gs://) holding the feature tables.")
	flag.StringVar(&hdrDir, "hdr", "", "Directory (local or gs://) holding the per-day .hdr and .adc files.")
	flag.StringVar(&sample, "sample", "", "Sample to inspect, e.g. D20210415T123456_IFCB134 (a feature file name also works).")
	flag.StringVar(&featureName, "feature", psd.EquivDiameter.String(), "Size feature to histogram.")
	flag.StringVar(&pngPath, "png", "", "Optional. Also draw the distribution and fit to this PNG file.")
	flag.Float64Var(&micronFactor, "micron-factor", units.DefaultMicronFactor, "Microns per pixel.")
	flag.IntVar(&startFit, "start-fit", powerfit.DefaultOptions().StartFit, "First size bin included in the fit.")
	flag.IntVar(&buckets, "buckets", 25, "Number of buckets in the terminal histogram.")
	flag.IntVar(&roi, "roi", 0, "Optional. Print the trigger record of this ROI number.")
	flag.Parse()

	if featureDir == "" {
		log.Fatalln("Please provide -features")
	}

	if hdrDir == "" {
		log.Fatalln("Please provide -hdr")
	}

	if sample == "" {
		log.Fatalln("Please provide -sample")
	}

	ref, ok := ifcbdata.ParseRef(sample)
	if !ok {
		log.Fatalf("%s does not look like a sample name (DYYYYMMDDTHHMMSS_IFCBnnn)\n", sample)
	}

	feature, err := psd.ParseFeature(featureName)
	if err != nil {
		log.Fatalln(err)
	}

	if startFit < 0 || startFit >= tables.NBins {
		log.Fatalf("-start-fit must be between 0 and %d, got %d\n", tables.NBins-1, startFit)
	}

	opts := powerfit.DefaultOptions()
	opts.StartFit = startFit

	if err := inspect(ref, ifcbdata.Source{FeatureDir: featureDir, HeaderDir: hdrDir}, feature, units.NewConverter(micronFactor), opts, buckets, roi, pngPath); err != nil {
		log.Fatalln(err)
	}
}

func inspect(ref ifcbdata.SampleRef, src ifcbdata.Source, feature psd.Feature, conv units.Converter, opts powerfit.Options, buckets, roi int, pngPath string) error {
	ctx := context.Background()

	if ifcbpsd.IsGSPath(src.FeatureDir) || ifcbpsd.IsGSPath(src.HeaderDir) {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return pfx.Err(err)
		}
		defer client.Close()
		src.Storage = client
	}

	s, err := psd.LoadSample(ctx, src, ref, conv)
	if err != nil {
		return err
	}

	if err := s.BuildHistograms(); err != nil {
		return err
	}

	// The sample only reports to this terminal, not to a Bin.
	bin := psd.NewBin([]string{s.Name}, conv)
	res, err := s.FitAndSummarize(opts, bin)
	if err != nil {
		return err
	}

	fmt.Printf("Sample:\t%s\n", ref)
	fmt.Printf("Targets:\t%d of %d triggers (capture %.3f)\n", len(s.Targets), s.TriggerCount, s.CapturePercent)
	fmt.Printf("Volume analyzed:\t%.4f mL\n", s.VolumeAnalyzed)
	fmt.Printf("Humidity:\t%.1f\n", s.Humidity)
	fmt.Printf("Bead run:\t%v\n", s.BeadRun)
	fmt.Printf("Peak density:\t%g\n", s.PeakDensity)
	fmt.Printf("ESD diff:\t%d\n", s.ESDDiff)
	fmt.Printf("Fit:\t%s after %d iterations\n", res.Status, res.Iterations)
	if res.OK() {
		fmt.Printf("\t%s\n", psdplot.Equation(res))
	}

	sizes := make([]float64, 0, len(s.Targets))
	for _, t := range s.Targets {
		sizes = append(sizes, feature.Of(t))
	}

	if len(sizes) > 0 {
		fmt.Printf("\n%s (microns):\n", feature)
		hist := histogram.Hist(buckets, sizes)
		if err := histogram.Fprint(os.Stdout, hist, histogram.Linear(5)); err != nil {
			return err
		}
	}

	h, _ := s.Histogram(feature)
	fmt.Printf("\nDensity by bin (particles/L), bins %d-%d:\n", opts.StartFit, tables.NBins-1)
	printDensity(os.Stdout, h.Density[:], opts.StartFit)

	if roi > 0 {
		adc, err := ifcbdata.OpenADC(ctx, src.ADCPath(ref), src.Storage)
		if err != nil {
			return err
		}
		defer adc.Close()

		rec, err := adc.Record(roi)
		if err != nil {
			return err
		}
		fmt.Printf("\nROI %d trigger record:\t%s\n", roi, strings.Join(rec, "\t"))
	}

	if pngPath != "" {
		f, err := os.Create(pngPath)
		if err != nil {
			return pfx.Err(err)
		}
		popts := psdplot.DefaultOptions()
		popts.StartFit = opts.StartFit
		if err := psdplot.Render(f, s, popts); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return pfx.Err(err)
		}
		log.Println("Wrote", pngPath)
	}

	return nil
}

func printDensity(w io.Writer, density []float64, start int) {
	if start < 0 {
		start = 0
	}

	last := start
	for i := start; i < len(density); i++ {
		if density[i] > 0 {
			last = i
		}
	}

	for i := start; i <= last && i < len(density); i++ {
		fmt.Fprintf(w, "%d\t%g\n", i, density[i])
	}
}
