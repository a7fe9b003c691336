package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/cybersundae/capam/pkg/consent"
)

// JSONFile is the single-document JSON output name.
const JSONFile = "CapabilityAccessManager.json"

// WriteJSON writes the whole report, records and warnings together, as
// one indented JSON document. Serialization is deterministic: running
// the pipeline twice over the same inputs produces byte-identical
// output, which examiners rely on when hashing results.
func WriteJSON(fs afero.Fs, dir string, rep *consent.Report) error {
	path := filepath.Join(dir, JSONFile)
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("output file %q already exists, refusing to overwrite", path)
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
