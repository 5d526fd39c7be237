package ifcbdata

import (
	"context"
	"encoding/csv"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ifcbpsd"
	"github.com/carbocation/ifcbpsd/ramcsv"
	"github.com/carbocation/pfx"
)

// ADC is the trigger record of a sample: one line per trigger, addressable by
// 1-based ROI number.
type ADC struct {
	path string
	src  ifcbpsd.ReaderAtCloser
	ram  *ramcsv.RAMCSV
}

// OpenADC indexes the .adc file at path. The file stays open until Close.
func OpenADC(ctx context.Context, path string, client *storage.Client) (*ADC, error) {
	src, err := ifcbpsd.OpenReaderAt(ctx, path, client)
	if err != nil {
		return nil, pfx.Err(err)
	}

	rdr := csv.NewReader(nil)
	rdr.FieldsPerRecord = -1

	ram, err := ramcsv.NewRAMCSV(src, rdr)
	if err != nil {
		src.Close()
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return &ADC{path: path, src: src, ram: ram}, nil
}

// Triggers is the number of trigger lines.
func (a *ADC) Triggers() int {
	return a.ram.Len()
}

// Record returns the fields of trigger roi, counting from 1.
func (a *ADC) Record(roi int) ([]string, error) {
	if roi < 1 || roi > a.ram.Len() {
		return nil, fmt.Errorf("%s: ROI %d out of range [1, %d]", a.path, roi, a.ram.Len())
	}

	return a.ram.Read(roi - 1)
}

func (a *ADC) Close() error {
	return a.src.Close()
}

// TriggerCount opens the sample's ADC file and counts its lines.
func (s Source) TriggerCount(ctx context.Context, ref SampleRef) (int, error) {
	adc, err := OpenADC(ctx, s.ADCPath(ref), s.Storage)
	if err != nil {
		return 0, err
	}
	defer adc.Close()

	return adc.Triggers(), nil
}
