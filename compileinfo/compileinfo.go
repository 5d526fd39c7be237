// Package compileinfo reports which commit and toolchain a command was built
// from, so that output files can be traced back to the code that made them.
package compileinfo

import (
	"fmt"
	"os"
	"runtime/debug"
)

type CompileInfo struct {
	Command    string
	Module     string
	Version    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (c CompileInfo) String() string {
	if c.Command == "" {
		return "ifcbpsd: no build information available"
	}

	mod := ""
	if c.Modified {
		mod = " Files in the repo were modified after that commit."
	}

	return fmt.Sprintf("%s (%s %s) was built with %s at commit %v at time %v.%s", c.Command, c.Module, c.Version, c.GoVersion, c.Commit, c.CommitTime, mod)
}

// FromBuildInfo extracts the fields of interest from b.
func FromBuildInfo(b *debug.BuildInfo) CompileInfo {
	out := CompileInfo{
		Command:   b.Path,
		Module:    b.Main.Path,
		Version:   b.Main.Version,
		GoVersion: b.GoVersion,
	}

	for _, s := range b.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}

func Get() CompileInfo {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return CompileInfo{}
	}

	return FromBuildInfo(b)
}

func PrintToStdErr() {
	fmt.Fprintf(os.Stderr, "%s\n", Get())
}
