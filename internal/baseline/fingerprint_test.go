package baseline_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/prbaseline/internal/baseline"
)

func TestFingerprintIgnoresResultOrder(testInstance *testing.T) {
	first := baseline.ReconciliationResult{Path: "a.txt", Content: []byte("a")}
	second := baseline.ReconciliationResult{Path: "b.txt", Absent: true}

	require.Equal(testInstance,
		baseline.Fingerprint([]baseline.ReconciliationResult{first, second}),
		baseline.Fingerprint([]baseline.ReconciliationResult{second, first}),
	)
	require.Len(testInstance, baseline.Fingerprint(nil), 16)
}

func TestFingerprintDistinguishesAbsentFromEmpty(testInstance *testing.T) {
	absent := baseline.Fingerprint([]baseline.ReconciliationResult{{Path: "a.txt", Absent: true}})
	empty := baseline.Fingerprint([]baseline.ReconciliationResult{{Path: "a.txt"}})
	changed := baseline.Fingerprint([]baseline.ReconciliationResult{{Path: "a.txt", Content: []byte("x")}})

	require.NotEqual(testInstance, absent, empty)
	require.NotEqual(testInstance, empty, changed)
}
