// ifcbpsd computes particle size distributions for every sample of an IFCB
// deployment, fits a power law to each, flags suspicious samples, and writes
// the resulting tables.
package main

import (
	"flag"
	"log"
	"strings"

	"github.com/carbocation/ifcbpsd/config"
	"github.com/carbocation/ifcbpsd/flags"

	_ "github.com/carbocation/ifcbpsd/compileinfoprint"
)

func main() {
	def := config.Default()

	var configPath string
	var featureDir, hdrDir, outputDir, name string
	var samplesPath, saveSamplesPath string
	var micronFactor, rSquared float64
	var startFit, sigFigs, maxIterations, concurrency int
	var graphs, useMarker bool
	thresholds := thresholdFlag{}

	flag.StringVar(&configPath, "config", "", "Path to a JSON run configuration. Flags that are set explicitly override it.")
	flag.StringVar(&featureDir, "features", "", "Directory (local or gs://) holding the {sample}_{ifcb}_fea_v2.csv feature tables.")
	flag.StringVar(&hdrDir, "hdr", "", "Directory (local or gs://) holding one subdirectory per day with the .hdr and .adc files.")
	flag.StringVar(&outputDir, "out", def.OutputDir, "Directory the output tables (and Graphs/) are written to.")
	flag.StringVar(&name, "name", def.Name, "Prefix of the output tables: {name}_data.csv, {name}_fits.csv, {name}_flags.csv.")
	flag.StringVar(&samplesPath, "samples", "", "Optional. Read previously processed samples from this JSON file instead of the raw files.")
	flag.StringVar(&saveSamplesPath, "save-samples", "", "Optional. Write the processed samples to this JSON file.")
	flag.Float64Var(&micronFactor, "micron-factor", def.MicronFactor, "Microns per pixel.")
	flag.Float64Var(&rSquared, "r2", def.RSquared, "Samples whose fit R^2 is below this value are flagged 'Low R^2'.")
	flag.IntVar(&startFit, "start-fit", def.StartFit, "First size bin (in microns) included in the power law fit.")
	flag.IntVar(&sigFigs, "sigfigs", def.SigFigs, "Significant figures kept for the fitted parameters.")
	flag.IntVar(&maxIterations, "max-iterations", def.MaxIterations, "Iteration limit of the curve fit.")
	flag.IntVar(&concurrency, "concurrency", 0, "Samples processed at once. 0 means one per CPU.")
	flag.BoolVar(&graphs, "graphs", false, "Write a PNG of each sample's distribution into {out}/Graphs.")
	flag.BoolVar(&useMarker, "marker", false, "Mark each bin on the graphs.")
	flag.Var(&thresholds, "flag", "Enable a flag rule as key=threshold[,threshold]. May be repeated. Valid keys: "+strings.Join(flags.Keys(), ", "))

	flag.Parse()

	cfg := def
	if configPath != "" {
		var err error
		cfg, err = config.ParseJSONConfigFromPath(configPath)
		if err != nil {
			log.Fatalln(err)
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "features":
			cfg.FeatureDir = featureDir
		case "hdr":
			cfg.HeaderDir = hdrDir
		case "out":
			cfg.OutputDir = outputDir
		case "name":
			cfg.Name = name
		case "samples":
			cfg.SamplesPath = samplesPath
		case "save-samples":
			cfg.SaveSamplesPath = saveSamplesPath
		case "micron-factor":
			cfg.MicronFactor = micronFactor
		case "r2":
			cfg.RSquared = rSquared
		case "start-fit":
			cfg.StartFit = startFit
		case "sigfigs":
			cfg.SigFigs = sigFigs
		case "max-iterations":
			cfg.MaxIterations = maxIterations
		case "concurrency":
			cfg.Concurrency = concurrency
		case "graphs":
			cfg.Graphs = graphs
		case "marker":
			cfg.UseMarker = useMarker
		case "flag":
			if cfg.Flags == nil {
				cfg.Flags = map[string]config.Threshold{}
			}
			for k, v := range thresholds {
				cfg.Flags[k] = v
			}
		}
	})

	if cfg.SamplesPath == "" && cfg.FeatureDir == "" {
		log.Fatalln("Please provide -features (or -samples)")
	}

	if cfg.SamplesPath == "" && cfg.HeaderDir == "" {
		log.Fatalln("Please provide -hdr")
	}

	// Configuration errors, including unknown flag rules, stop the run before
	// any sample is read.
	if err := cfg.Validate(); err != nil {
		log.Fatalln(err)
	}

	log.Println("Launched ifcbpsd")

	if err := run(cfg); err != nil {
		log.Fatalln(err)
	}
}
