package psd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sort"
	"sync"

	"github.com/carbocation/ifcbpsd/flags"
	"github.com/carbocation/ifcbpsd/ifcbdata"
	"github.com/carbocation/ifcbpsd/powerfit"
	"github.com/carbocation/ifcbpsd/tables"
	"github.com/carbocation/ifcbpsd/units"
	"golang.org/x/sync/errgroup"
)

// ErrNameCollision is recorded for a sample whose name is shared by a later
// sample of another instrument. Rows are keyed by name, so only the later
// sample contributes.
var ErrNameCollision = errors.New("sample name collision")

// Failure records why a sample contributed no rows.
type Failure struct {
	Sample string
	Err    error
}

// Bin aggregates the samples of one deployment. Its tables are keyed by
// sample name and written at most once per sample; all writes are
// serialized, so samples may be processed concurrently.
type Bin struct {
	conv units.Converter

	mu       sync.Mutex
	names    []string
	position map[string]int
	data     *tables.Distribution
	fits     *tables.Fits
	samples  map[string]*Sample
	failures []Failure
}

// NewBin returns an empty Bin whose tables iterate in the order of names.
func NewBin(names []string, conv units.Converter) *Bin {
	b := &Bin{
		conv:     conv,
		data:     tables.NewDistribution(names),
		fits:     tables.NewFits(names),
		position: make(map[string]int, len(names)),
		samples:  make(map[string]*Sample, len(names)),
	}

	for _, name := range names {
		if _, exists := b.position[name]; exists {
			continue
		}
		b.position[name] = len(b.names)
		b.names = append(b.names, name)
	}

	return b
}

// NewBinFromRefs indexes a Bin by the names of refs.
func NewBinFromRefs(refs []ifcbdata.SampleRef, conv units.Converter) *Bin {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}

	return NewBin(names, conv)
}

func (b *Bin) Converter() units.Converter {
	return b.conv
}

// Names is the sample index of the Bin.
func (b *Bin) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.names...)
}

// AddData inserts or overwrites the distribution row for name.
func (b *Bin) AddData(name string, dateNumber float64, density [tables.NBins]float64, volumeAnalyzed, peakDensity float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.index(name)
	b.data.Set(name, tables.DistributionRow{
		Density:        density,
		VolumeAnalyzed: volumeAnalyzed,
		PeakDensity:    peakDensity,
		DateNumber:     dateNumber,
	})
}

// AddFit inserts or overwrites the fit row for name.
func (b *Bin) AddFit(name string, a, k, rSquared float64, esdDiff int, capturePercent float64, beadRun bool, humidity float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.index(name)
	b.fits.Set(name, tables.FitRow{
		A:              a,
		K:              k,
		RSquared:       rSquared,
		ESDDiff:        esdDiff,
		CapturePercent: capturePercent,
		BeadRun:        beadRun,
		Humidity:       humidity,
	})
}

// index appends name to the sample index if needed. Callers hold mu.
func (b *Bin) index(name string) {
	if _, exists := b.position[name]; exists {
		return
	}
	b.position[name] = len(b.names)
	b.names = append(b.names, name)
}

// RecordFailure notes that name could not be processed.
func (b *Bin) RecordFailure(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.index(name)
	b.failures = append(b.failures, Failure{Sample: name, Err: err})
}

// Failures lists the failed samples in index order.
func (b *Bin) Failures() []Failure {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := append([]Failure(nil), b.failures...)
	sort.SliceStable(out, func(i, j int) bool { return b.position[out[i].Sample] < b.position[out[j].Sample] })

	return out
}

// Distribution is the live distribution table. Read it only once
// processing has finished.
func (b *Bin) Distribution() *tables.Distribution {
	return b.data
}

// Fits is the live fit table. Read it only once processing has finished.
func (b *Bin) Fits() *tables.Fits {
	return b.fits
}

// Samples returns the successfully summarized samples in index order.
func (b *Bin) Samples() []*Sample {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*Sample, 0, len(b.samples))
	for _, name := range b.names {
		if s, ok := b.samples[name]; ok {
			out = append(out, s)
		}
	}

	return out
}

func (b *Bin) keep(s *Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples[s.Name] = s
}

// ProcessOptions controls Bin.Process and Bin.Summarize.
type ProcessOptions struct {
	Fit powerfit.Options

	// Samples handled at once. Zero means one per CPU.
	Concurrency int
}

func (o ProcessOptions) limit() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}

	return runtime.NumCPU()
}

// Process ingests, bins and fits every ref. A sample that cannot be read is
// recorded as a failure and skipped. The only error returned is the
// context's, when it is cancelled; rows already written stay valid.
func (b *Bin) Process(ctx context.Context, src ifcbdata.Source, refs []ifcbdata.SampleRef, opts ProcessOptions) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.limit())

	shadowed := shadowedRefs(refs)

	for i, ref := range refs {
		ref := ref
		if later, ok := shadowed[i]; ok {
			err := fmt.Errorf("%w: %s is replaced by %s", ErrNameCollision, ref, later)
			log.Printf("Skipping %s: %v\n", ref, err)
			b.RecordFailure(ref.Name, err)
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			log.Printf("Processing %s\n", ref)

			s, err := LoadSample(gctx, src, ref, b.conv)
			if err == nil {
				err = s.BuildHistograms()
			}
			if err == nil {
				_, err = s.FitAndSummarize(opts.Fit, b)
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Printf("Skipping %s: %v\n", ref, err)
				b.RecordFailure(ref.Name, err)
				return nil
			}

			b.keep(s)
			return nil
		})
	}

	return g.Wait()
}

// shadowedRefs maps the position of every ref whose name reappears later in
// refs to the last ref carrying that name.
func shadowedRefs(refs []ifcbdata.SampleRef) map[int]ifcbdata.SampleRef {
	last := make(map[string]int, len(refs))
	for i, ref := range refs {
		last[ref.Name] = i
	}

	out := make(map[int]ifcbdata.SampleRef)
	for i, ref := range refs {
		if j := last[ref.Name]; j != i {
			out[i] = refs[j]
		}
	}

	return out
}

// Summarize fits samples that were already ingested and binned, such as
// those restored from a snapshot. Samples without histograms are binned
// first.
func (b *Bin) Summarize(ctx context.Context, samples []*Sample, opts ProcessOptions) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.limit())

	for _, s := range samples {
		s := s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			var err error
			if len(s.Histograms) == 0 {
				err = s.BuildHistograms()
			}
			if err == nil {
				_, err = s.FitAndSummarize(opts.Fit, b)
			}
			if err != nil {
				log.Printf("Skipping %s: %v\n", s.Name, err)
				b.RecordFailure(s.Name, err)
				return nil
			}

			b.keep(s)
			return nil
		})
	}

	return g.Wait()
}

// Export is the finished output of a Bin.
type Export struct {
	Distribution *tables.Distribution
	Fits         *tables.Fits
	Flags        []tables.Flag
	Failures     []Failure
}

// Export evaluates engine against the finished tables. Call it only after
// Process or Summarize has returned.
func (b *Bin) Export(engine *flags.Engine) Export {
	b.mu.Lock()
	data, fits := b.data, b.fits
	b.mu.Unlock()

	return Export{
		Distribution: data,
		Fits:         fits,
		Flags:        engine.Evaluate(data, fits),
		Failures:     b.Failures(),
	}
}
