package exchange

import (
	"os"
	"path/filepath"
)

// Dumper writes raw and cleaned service responses into a debug directory so
// a failed job can be inspected by hand. Dump failures are ignored — debug
// output must never fail a job.
type Dumper struct {
	Dir string
}

// Dump writes content under the dumper's directory, creating it on demand.
func (d *Dumper) Dump(name, content string) {
	if d == nil || d.Dir == "" {
		return
	}
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(d.Dir, name), []byte(content), 0644)
}
