package buildinfo

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"text/tabwriter"
)

const Unknown = "unknown"

// set at build time through -ldflags
var (
	gitVersion  = Unknown
	gitRevision = Unknown
	date        = Unknown

	Info info
)

type info struct {
	Version      string `json:"version"`
	Revision     string `json:"revision"`
	BuildDate    string `json:"buildDate"`
	GoVersion    string `json:"goVersion"`
	Compiler     string `json:"compiler"`
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	RaceDetector bool   `json:"raceDetector"`
}

func init() {
	Info.Version = gitVersion
	Info.Revision = gitRevision
	Info.BuildDate = date
	Info.GoVersion = runtime.Version()
	Info.Compiler = runtime.Compiler
	Info.OS = runtime.GOOS
	Info.Arch = runtime.GOARCH
}

func Print(dest io.Writer) error {
	w := tabwriter.NewWriter(dest, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%q\n", Info.Version)
	fmt.Fprintf(w, "Revision:\t%q\n", Info.Revision)
	fmt.Fprintf(w, "Build Date:\t%q\n", Info.BuildDate)
	fmt.Fprintf(w, "Go Version:\t%q\n", Info.GoVersion)
	fmt.Fprintf(w, "Go Compiler:\t%q\n", Info.Compiler)
	fmt.Fprintf(w, "Go OS:\t%q\n", Info.OS)
	fmt.Fprintf(w, "Go ARCH:\t%q\n", Info.Arch)
	fmt.Fprintf(w, "Race Detector:\t%v\n", Info.RaceDetector)
	return w.Flush()
}

func JSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(Info)
}
