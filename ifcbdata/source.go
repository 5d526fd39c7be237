// Package ifcbdata reads the per-sample files an Imaging FlowCytobot
// deployment produces: the feature table, the header (.hdr) with instrument
// metadata, and the trigger record (.adc). Paths may be local or on Google
// Storage.
package ifcbdata

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ifcbpsd"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"
)

// SampleRef identifies one sample: the timestamped sample name, e.g.
// D20210415T123456, and the instrument that acquired it, e.g. IFCB134.
type SampleRef struct {
	Name       string
	Instrument string
}

func (r SampleRef) String() string {
	return r.Name + "_" + r.Instrument
}

// Day is the D-prefixed acquisition date, which is also the name of the
// directory that holds the sample's raw files.
func (r SampleRef) Day() string {
	if len(r.Name) < 9 {
		return r.Name
	}

	return r.Name[:9]
}

var sampleNamePattern = regexp.MustCompile(`D\d{8}T\d{6}`)

// ParseRef extracts a SampleRef from a file name such as
// D20210415T123456_IFCB134_fea_v2.csv.
func ParseRef(filename string) (SampleRef, bool) {
	base := path.Base(filepath.ToSlash(filename))
	if !sampleNamePattern.MatchString(base) {
		return SampleRef{}, false
	}

	parts := strings.Split(base, "_")
	if len(parts) < 2 {
		return SampleRef{}, false
	}

	return SampleRef{Name: parts[0], Instrument: parts[1]}, true
}

// Source locates the raw files of a deployment. FeatureDir holds
// {name}_{ifcb}_fea_v2.csv; HeaderDir holds one directory per day with
// {name}_{ifcb}.hdr and {name}_{ifcb}.adc. Storage is only needed for gs://
// paths.
type Source struct {
	FeatureDir string
	HeaderDir  string
	Storage    *storage.Client
}

func (s Source) FeaturePath(ref SampleRef) string {
	return joinPath(s.FeatureDir, ref.String()+"_fea_v2.csv")
}

func (s Source) HeaderPath(ref SampleRef) string {
	return joinPath(s.HeaderDir, ref.Day(), ref.String()+".hdr")
}

func (s Source) ADCPath(ref SampleRef) string {
	return joinPath(s.HeaderDir, ref.Day(), ref.String()+".adc")
}

func joinPath(dir string, elem ...string) string {
	if ifcbpsd.IsGSPath(dir) {
		return strings.TrimSuffix(dir, "/") + "/" + strings.Join(elem, "/")
	}

	return filepath.Join(append([]string{dir}, elem...)...)
}

// Discover lists the samples that have a feature file, sorted by name and
// then instrument. A sample appears once even if several files match it.
func (s Source) Discover(ctx context.Context) ([]SampleRef, error) {
	var names []string
	var err error

	if ifcbpsd.IsGSPath(s.FeatureDir) {
		names, err = s.listGoogleStorage(ctx)
	} else {
		names, err = listLocal(s.FeatureDir)
	}
	if err != nil {
		return nil, err
	}

	return refsFromNames(names), nil
}

func refsFromNames(names []string) []SampleRef {
	seen := make(map[SampleRef]struct{})
	out := make([]SampleRef, 0, len(names))
	for _, name := range names {
		ref, ok := ParseRef(name)
		if !ok {
			continue
		}
		if _, exists := seen[ref]; exists {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Instrument < out[j].Instrument
	})

	return out
}

func listLocal(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, pfx.Err(err)
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, e.Name())
	}

	return out, nil
}

func (s Source) listGoogleStorage(ctx context.Context) ([]string, error) {
	if s.Storage == nil {
		return nil, fmt.Errorf("%s is on Google Storage, but no storage client was configured", s.FeatureDir)
	}

	bucket, prefix := splitBucketPrefix(s.FeatureDir)

	out := make([]string, 0)
	it := s.Storage.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		// Pseudo-directories come back with only a Prefix
		if attrs.Name == "" {
			continue
		}
		out = append(out, path.Base(attrs.Name))
	}

	return out, nil
}

func splitBucketPrefix(dir string) (bucket, prefix string) {
	parts := strings.SplitN(strings.TrimPrefix(dir, "gs://"), "/", 2)
	bucket = parts[0]
	if len(parts) == 2 && parts[1] != "" {
		prefix = strings.TrimSuffix(parts[1], "/") + "/"
	}

	return bucket, prefix
}
