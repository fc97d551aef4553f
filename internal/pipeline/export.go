package pipeline

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"

	types "github.com/yungbote/simgraph/internal/domain"
)

var exportHeader = []string{
	"sourceJobId", "sourceCluster", "sourceMembershipScore",
	"targetJobId", "targetCluster", "targetMembershipScore",
	"weight",
}

// ExportEdges writes edges to path on fs as CSV, one row per edge in
// ingestion order.
func ExportEdges(fs afero.Fs, path string, edges []types.SimilarityEdge) (err error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export edges: %w", err)
		}
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("export edges: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("export edges: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		return fmt.Errorf("export edges: %w", err)
	}
	for _, e := range edges {
		if err := w.Write([]string{
			e.SourceID, e.SourceCluster, formatFloat(e.SourceStrength),
			e.TargetID, e.TargetCluster, formatFloat(e.TargetStrength),
			formatFloat(e.Weight),
		}); err != nil {
			return fmt.Errorf("export edges: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("export edges: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
