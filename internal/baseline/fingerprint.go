package baseline

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

const (
	fingerprintTemplateConstant = "%016x"
	fingerprintSeparatorByte    = byte(0)
	fingerprintAbsentMarker     = "absent"
	fingerprintPresentMarker    = "present"
)

// Fingerprint returns a stable digest of reconciliation results, independent of their order.
func Fingerprint(results []ReconciliationResult) string {
	orderedResults := make([]ReconciliationResult, len(results))
	copy(orderedResults, results)
	sort.SliceStable(orderedResults, func(leftIndex int, rightIndex int) bool {
		return orderedResults[leftIndex].Path < orderedResults[rightIndex].Path
	})

	digest := xxhash.New()
	for _, result := range orderedResults {
		_, _ = digest.WriteString(result.Path)
		_, _ = digest.Write([]byte{fingerprintSeparatorByte})
		if result.Absent {
			_, _ = digest.WriteString(fingerprintAbsentMarker)
		} else {
			_, _ = digest.WriteString(fingerprintPresentMarker)
			_, _ = digest.Write(result.Content)
		}
		_, _ = digest.Write([]byte{fingerprintSeparatorByte})
	}
	return fmt.Sprintf(fingerprintTemplateConstant, digest.Sum64())
}
