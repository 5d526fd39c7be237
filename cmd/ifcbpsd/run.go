package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ifcbpsd"
	"github.com/carbocation/ifcbpsd/config"
	"github.com/carbocation/ifcbpsd/ifcbdata"
	"github.com/carbocation/ifcbpsd/psd"
	"github.com/carbocation/ifcbpsd/psdplot"
	"github.com/carbocation/ifcbpsd/report"
	"github.com/carbocation/pfx"
)

func run(cfg config.RunConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine, err := cfg.Engine()
	if err != nil {
		return err
	}

	var client *storage.Client
	if ifcbpsd.IsGSPath(cfg.FeatureDir) || ifcbpsd.IsGSPath(cfg.HeaderDir) || ifcbpsd.IsGSPath(cfg.SamplesPath) {
		client, err = storage.NewClient(ctx)
		if err != nil {
			return pfx.Err(err)
		}
		defer client.Close()
	}

	conv := cfg.Converter()
	opts := cfg.ProcessOptions()

	var bin *psd.Bin
	if cfg.SamplesPath != "" {
		samples, err := loadSamples(ctx, cfg.SamplesPath, client)
		if err != nil {
			return err
		}
		log.Println("Loaded", len(samples), "samples from", cfg.SamplesPath)

		bin = psd.NewBin(psd.Names(samples), conv)
		if err := bin.Summarize(ctx, samples, opts); err != nil {
			return err
		}
	} else {
		src := ifcbdata.Source{FeatureDir: cfg.FeatureDir, HeaderDir: cfg.HeaderDir, Storage: client}

		refs, err := src.Discover(ctx)
		if err != nil {
			return err
		}
		log.Println("Found", len(refs), "samples in", cfg.FeatureDir)

		bin = psd.NewBinFromRefs(refs, conv)
		if err := bin.Process(ctx, src, refs, opts); err != nil {
			return err
		}
	}
	log.Printf("Start fit: %d\n", cfg.StartFit)

	if cfg.Graphs {
		if err := writeGraphs(cfg, bin.Samples()); err != nil {
			return err
		}
	}

	log.Println("Saving data")
	export := bin.Export(engine)
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return pfx.Err(err)
	}
	if err := report.Save(cfg.OutputDir, cfg.Name, export); err != nil {
		return err
	}

	if cfg.SaveSamplesPath != "" {
		if err := saveSamples(cfg.SaveSamplesPath, bin.Samples()); err != nil {
			return err
		}
		log.Println("Saved samples to", cfg.SaveSamplesPath)
	}

	summary, err := report.Summarize(export)
	if err != nil {
		return err
	}
	log.Println(summary)

	return nil
}

func writeGraphs(cfg config.RunConfig, samples []*psd.Sample) error {
	dir := filepath.Join(cfg.OutputDir, "Graphs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pfx.Err(err)
	}

	opts := psdplot.DefaultOptions()
	opts.StartFit = cfg.StartFit
	opts.UseMarker = cfg.UseMarker

	for _, s := range samples {
		log.Println("Graphing", s.Name)
		if _, err := psdplot.WritePNG(dir, s, opts); err != nil {
			return err
		}
	}

	return nil
}

func loadSamples(ctx context.Context, path string, client *storage.Client) ([]*psd.Sample, error) {
	f, err := ifcbpsd.OpenPath(ctx, path, client)
	if err != nil {
		return nil, pfx.Err(err)
	}

	rc, err := ifcbpsd.MaybeDecompressReadCloser(f)
	if err != nil {
		f.Close()
		return nil, pfx.Err(err)
	}
	defer rc.Close()

	return psd.LoadSamples(rc)
}

func saveSamples(path string, samples []*psd.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	if err := psd.SaveSamples(f, samples); err != nil {
		f.Close()
		return err
	}

	return pfx.Err(f.Close())
}
