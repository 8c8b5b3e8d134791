package audit

import (
	"debug/elf"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Libraries the pipeline builds statically. A dynamic reference to
// one of these means the static link did not take.
var staticExpected = []string{"libz.so", "libssl.so", "libcrypto.so", "libcurl.so"}

// Finding records one binary that dynamically links a library the
// bundle was supposed to carry statically.
type Finding struct {
	Binary    string
	Libraries []string
}

// Report is the auditor's output. It is diagnostic only; the
// pipeline logs it and moves on.
type Report struct {
	Findings []Finding
	Scanned  int
}

func (r *Report) Clean() bool {
	return len(r.Findings) == 0
}

// Auditor scans the installed executables for unexpected dynamic
// linkage. Static-link correctness across every architecture is
// best-effort information, not a release gate, so nothing here
// returns an error to the pipeline.
type Auditor struct {
	L hclog.Logger

	Destination string
}

func (a *Auditor) logger() hclog.Logger {
	if a.L == nil {
		a.L = hclog.L()
	}

	return a.L
}

// Audit walks the staged tree and inspects every ELF executable.
// Unreadable or non-ELF files are skipped silently; a cross-compiled
// tree legitimately contains scripts and templates.
func (a *Auditor) Audit() *Report {
	log := a.logger()

	var report Report

	filepath.Walk(a.Destination, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		if info.Mode()&0111 == 0 {
			return nil
		}

		libs, ok := dynamicNeeds(path)
		if !ok {
			return nil
		}

		report.Scanned++

		var bad []string

		for _, lib := range libs {
			for _, exp := range staticExpected {
				if strings.HasPrefix(lib, exp) {
					bad = append(bad, lib)
				}
			}
		}

		if len(bad) > 0 {
			sort.Strings(bad)

			rel, rerr := filepath.Rel(a.Destination, path)
			if rerr != nil {
				rel = path
			}

			report.Findings = append(report.Findings, Finding{
				Binary:    rel,
				Libraries: bad,
			})
		}

		return nil
	})

	for _, f := range report.Findings {
		log.Warn("unexpected dynamic linkage", "binary", f.Binary, "libraries", strings.Join(f.Libraries, ", "))
	}

	log.Info("static link audit complete", "scanned", report.Scanned, "findings", len(report.Findings))

	return &report
}

func dynamicNeeds(path string) ([]string, bool) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, false
	}

	defer f.Close()

	libs, err := f.ImportedLibraries()
	if err != nil {
		return nil, true
	}

	return libs, true
}
