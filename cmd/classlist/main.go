// classlist creates and edits the manual classification lists of IFCB
// samples, kept in a sqlite database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ifcbpsd"
	"github.com/carbocation/ifcbpsd/classlist"
	"github.com/carbocation/ifcbpsd/ifcbdata"
	"github.com/carbocation/pfx"
	"gopkg.in/guregu/null.v3"

	_ "github.com/carbocation/ifcbpsd/compileinfoprint"
)

const actions = "create, edit, replace-missing, replace-value, set-classes, save-class2use, adjust, import-scores, show, show-scores"

type options struct {
	dbPath  string
	action  string
	sample  string
	classes []string
	length  int
	manual  string
	rows    string
	column  int
	target  int64
	value   string
	hdrDir  string

	list       string
	scores     string
	classifier string
	threshold  float64
}

func main() {
	var o options
	var classes string

	flag.StringVar(&o.dbPath, "db", "", "Path to the sqlite database holding the classification lists.")
	flag.StringVar(&o.action, "action", "", "One of: "+actions)
	flag.StringVar(&o.sample, "sample", "", "Sample, e.g. D20210415T123456_IFCB134.")
	flag.StringVar(&classes, "classes", "", "Comma-separated class names (create, set-classes, save-class2use, adjust).")
	flag.StringVar(&o.list, "list", "", "Name of a stored class2use list (save-class2use, adjust).")
	flag.StringVar(&o.scores, "scores", "", "Classifier score table: a ROI column, then one column per class (import-scores).")
	flag.StringVar(&o.classifier, "classifier", "", "Name of the classifier that produced -scores (import-scores).")
	flag.Float64Var(&o.threshold, "threshold", 0, "Minimum winning score for a ROI to keep its class rather than unclassified (import-scores).")
	flag.IntVar(&o.length, "length", 0, "Number of ROIs (create). If 0, the sample's trigger count is read from its .adc file under -hdr.")
	flag.StringVar(&o.manual, "manual", "1", "Manual class index for every ROI, or one comma-separated index per ROI (create).")
	flag.StringVar(&o.rows, "rows", "", "Comma-separated 1-based rows (edit).")
	flag.IntVar(&o.column, "column", classlist.ColumnManual, "Classlist column: 0 roi number, 1 manual, 2 auto (replace-missing, replace-value).")
	flag.Int64Var(&o.target, "target", 0, "Value to replace (replace-value).")
	flag.StringVar(&o.value, "value", "", "New class index; 'nan' clears it (edit, replace-missing, replace-value).")
	flag.StringVar(&o.hdrDir, "hdr", "", "Directory (local or gs://) with the per-day .adc files (create without -length).")
	flag.Parse()

	if o.dbPath == "" {
		log.Fatalln("Please provide -db")
	}

	if o.action == "" {
		log.Fatalln("Please provide -action")
	}

	if classes != "" {
		for _, c := range strings.Split(classes, ",") {
			o.classes = append(o.classes, strings.TrimSpace(c))
		}
	}

	if err := run(context.Background(), o); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, o options) error {
	store, err := classlist.Open(o.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	switch o.action {
	case "save-class2use":
		if o.list == "" {
			return fmt.Errorf("Please provide -list")
		}
		if len(o.classes) == 0 {
			return fmt.Errorf("Please provide -classes")
		}
		log.Println("Saving", len(o.classes), "classes as", o.list)
		return store.SaveClassList(ctx, o.list, o.classes)
	case "adjust":
		var n int
		var err error
		switch {
		case o.list != "":
			n, err = store.AdjustClassesFrom(ctx, o.list)
		case len(o.classes) > 0:
			n, err = store.AdjustClasses(ctx, o.classes)
		default:
			return fmt.Errorf("Please provide -list or -classes")
		}
		if err != nil {
			return err
		}
		log.Println("Updated the classes of", n, "samples")
		return nil
	}

	if o.sample == "" {
		return fmt.Errorf("Please provide -sample")
	}

	switch o.action {
	case "import-scores":
		c, err := importScores(o)
		if err != nil {
			return err
		}
		log.Println("Imported", len(c.ROIs), "classified ROIs for", o.sample)
		return store.SaveClassification(ctx, c)
	case "show-scores":
		c, err := store.LoadClassification(ctx, o.sample)
		if err != nil {
			return err
		}
		showScores(c)
		return nil
	}

	if o.action == "create" {
		rec, err := create(ctx, o)
		if err != nil {
			return err
		}
		log.Println("Created a classlist of", len(rec.Rows), "ROIs for", o.sample)
		return store.Save(ctx, rec)
	}

	rec, err := store.Load(ctx, o.sample)
	if err != nil {
		return err
	}

	switch o.action {
	case "show":
		show(rec)
		return nil
	case "edit":
		rows, err := parseInts(o.rows)
		if err != nil {
			return err
		}
		value, err := parseValue(o.value)
		if err != nil {
			return err
		}
		if err := rec.EditRows(rows, value); err != nil {
			return err
		}
		log.Println("Edited", len(rows), "rows")
	case "replace-missing":
		value, err := parseValue(o.value)
		if err != nil {
			return err
		}
		if !value.Valid {
			return fmt.Errorf("Please provide a numeric -value")
		}
		n, err := rec.ReplaceMissing(o.column, value.Int64)
		if err != nil {
			return err
		}
		log.Println("Filled", n, "missing values")
	case "replace-value":
		value, err := parseValue(o.value)
		if err != nil {
			return err
		}
		if !value.Valid {
			return fmt.Errorf("Please provide a numeric -value")
		}
		n, err := rec.ReplaceValue(o.column, o.target, value.Int64)
		if err != nil {
			return err
		}
		log.Println("Replaced", n, "values")
	case "set-classes":
		if len(o.classes) == 0 {
			return fmt.Errorf("Please provide -classes")
		}
		rec.SetClasses(o.classes)
	default:
		return fmt.Errorf("action %q not found. Valid actions include: %s", o.action, actions)
	}

	return store.Save(ctx, rec)
}

func create(ctx context.Context, o options) (*classlist.Record, error) {
	length := o.length
	if length == 0 {
		n, err := triggerCount(ctx, o)
		if err != nil {
			return nil, err
		}
		length = n
	}

	manual := make([]int64, 0)
	for _, field := range strings.Split(o.manual, ",") {
		v, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
		if err != nil {
			return nil, pfx.Err(err)
		}
		manual = append(manual, v)
	}

	return classlist.NewManual(o.sample, length, o.classes, manual...)
}

func importScores(o options) (*classlist.Classification, error) {
	if o.scores == "" {
		return nil, fmt.Errorf("Please provide -scores")
	}
	if o.classifier == "" {
		return nil, fmt.Errorf("Please provide -classifier")
	}

	f, err := os.Open(ifcbpsd.ExpandHome(o.scores))
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	classes, rois, scores, err := classlist.ReadScores(f)
	if err != nil {
		return nil, err
	}

	winner, above := classlist.Decide(classes, scores, o.threshold)

	return classlist.NewClassification(o.sample, o.classifier, classes, rois, scores, winner, above)
}

func triggerCount(ctx context.Context, o options) (int, error) {
	if o.hdrDir == "" {
		return 0, fmt.Errorf("Please provide -length or -hdr")
	}

	ref, ok := ifcbdata.ParseRef(o.sample)
	if !ok {
		return 0, fmt.Errorf("%s does not look like a sample name", o.sample)
	}

	src := ifcbdata.Source{HeaderDir: o.hdrDir}
	if ifcbpsd.IsGSPath(o.hdrDir) {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return 0, pfx.Err(err)
		}
		defer client.Close()
		src.Storage = client
	}

	return src.TriggerCount(ctx, ref)
}

func parseInts(s string) ([]int, error) {
	out := make([]int, 0)
	for _, field := range strings.Split(s, ",") {
		if strings.TrimSpace(field) == "" {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, pfx.Err(err)
		}
		out = append(out, v)
	}

	return out, nil
}

func parseValue(s string) (null.Int, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "nan") {
		return null.Int{}, nil
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return null.Int{}, fmt.Errorf("-value %q: %w", s, err)
	}

	return null.IntFrom(v), nil
}

func show(rec *classlist.Record) {
	fmt.Printf("sample\t%s\n", rec.Sample)
	fmt.Printf("class2use_manual\t%s\n", strings.Join(rec.ClassesManual, ","))
	fmt.Printf("class2use_auto\t%s\n", strings.Join(rec.ClassesAuto, ","))
	fmt.Printf("default_class_original\t%s\n", rec.DefaultClassOriginal)
	fmt.Println(strings.Join(rec.ListTitles, "\t"))
	for i, row := range rec.Rows {
		name, _ := rec.Class(i + 1)
		fmt.Printf("%d\t%s\t%s\t%s\n", row.ROI, formatNull(row.Manual), formatNull(row.Auto), name)
	}
}

func formatNull(n null.Int) string {
	if !n.Valid {
		return "NaN"
	}

	return strconv.FormatInt(n.Int64, 10)
}

func showScores(c *classlist.Classification) {
	fmt.Printf("sample\t%s\n", c.Sample)
	fmt.Printf("classifier\t%s\n", c.Classifier)
	scored := c.Classes
	if n := len(scored); n > 0 && scored[n-1] == classlist.DefaultClass {
		scored = scored[:n-1]
	}
	fmt.Printf("roi\twinner\tabove_threshold\t%s\n", strings.Join(scored, "\t"))
	for _, roi := range c.ROIs {
		fields := make([]string, 0, len(roi.Scores))
		for _, v := range roi.Scores {
			fields = append(fields, strconv.FormatFloat(v, 'g', -1, 64))
		}
		fmt.Printf("%d\t%s\t%s\t%s\n", roi.ROI, roi.Winner, roi.AboveThreshold, strings.Join(fields, "\t"))
	}
}
