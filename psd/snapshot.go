package psd

import (
	"io"

	"github.com/bytedance/sonic"
	"github.com/carbocation/pfx"
)

type snapshot struct {
	Samples []*Sample `json:"samples"`
}

// SaveSamples writes processed samples as JSON so that a later run can skip
// ingestion and binning.
func SaveSamples(w io.Writer, samples []*Sample) error {
	b, err := sonic.Marshal(snapshot{Samples: samples})
	if err != nil {
		return pfx.Err(err)
	}

	if _, err := w.Write(b); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// LoadSamples reads a snapshot written by SaveSamples.
func LoadSamples(r io.Reader) ([]*Sample, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var snap snapshot
	if err := sonic.Unmarshal(b, &snap); err != nil {
		return nil, pfx.Err(err)
	}

	return snap.Samples, nil
}

// Names lists the sample names in order.
func Names(samples []*Sample) []string {
	out := make([]string, 0, len(samples))
	for _, s := range samples {
		out = append(out, s.Name)
	}

	return out
}
