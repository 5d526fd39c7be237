// compileinfoprint is imported for the side effect of printing the
// compileinfo banner to os.Stderr when a command starts.
package compileinfoprint

import "github.com/carbocation/ifcbpsd/compileinfo"

func init() {
	compileinfo.PrintToStdErr()
}
