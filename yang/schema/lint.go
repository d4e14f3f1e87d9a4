package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openconfig/goyang/pkg/yang"
)

// LintWithGoyang parses every YANG file under dir with openconfig/goyang, a
// second independent grammar and import/include resolver, the way
// andaru/opr8's modules.Collection walks a directory with yang.NewModules,
// Read and Process for the same directory-of-modules shape this package's
// own yang/parse pipeline consumes. It never feeds goyang's result back
// into a Domain - the two schema models aren't compatible - it only
// surfaces YANG-grammar or import-graph mistakes goyang's more complete
// parser catches and this package's hand-written one might accept or
// misdiagnose, as a pre-flight check cmd/yangc's -lint flag runs before the
// real Compile pass.
func LintWithGoyang(dir string) []error {
	yang.Path = []string{dir}
	ms := yang.NewModules()

	var errs []error
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			errs = append(errs, fmt.Errorf("goyang: %s: %w", path, err))
			return nil
		}
		if info.IsDir() || !strings.HasSuffix(path, ".yang") {
			return nil
		}
		if rerr := ms.Read(path); rerr != nil {
			errs = append(errs, fmt.Errorf("goyang: %s: %w", path, rerr))
		}
		return nil
	})

	for _, err := range ms.Process() {
		errs = append(errs, fmt.Errorf("goyang: %w", err))
	}
	return errs
}
