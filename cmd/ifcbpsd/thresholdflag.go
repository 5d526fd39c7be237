package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/carbocation/ifcbpsd/config"
)

// thresholdFlag collects repeated -flag key=v1[,v2] arguments.
type thresholdFlag map[string]config.Threshold

func (t thresholdFlag) String() string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		vals := make([]string, 0, len(t[k]))
		for _, v := range t[k] {
			vals = append(vals, strconv.FormatFloat(v, 'g', -1, 64))
		}
		out = append(out, k+"="+strings.Join(vals, ","))
	}

	return strings.Join(out, " ")
}

func (t thresholdFlag) Set(value string) error {
	key, raw, ok := strings.Cut(value, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=threshold[,threshold], got %q", value)
	}

	vals := make(config.Threshold, 0)
	for _, field := range strings.Split(raw, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		vals = append(vals, v)
	}
	t[key] = vals

	return nil
}
