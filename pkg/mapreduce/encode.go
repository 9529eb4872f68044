package mapreduce

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteResults emits the stable output contract: one line per key,
// key<TAB>value, value JSON-encoded. Results are expected pre-sorted
// (Run sorts them).
func WriteResults(w io.Writer, results []Result) error {
	for _, r := range results {
		value, err := json.Marshal(r.Value)
		if err != nil {
			return fmt.Errorf("failed to encode value for key %q: %w", r.Key, err)
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", r.Key, value); err != nil {
			return err
		}
	}
	return nil
}
