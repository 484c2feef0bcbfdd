package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpersWithoutInit(t *testing.T) {
	if Pipeline != nil {
		t.Skip("metrics already initialized")
	}
	IncExtended("0xSafe")
	ObserveStage("extend", time.Now())
	assert.NoError(t, WriteFile(filepath.Join(t.TempDir(), "none.prom")))
}

func TestPipelineMetrics(t *testing.T) {
	InitPipelineMetrics()
	InitPipelineMetrics()
	require.NotNil(t, Pipeline)

	IncExtended("0xSafe")
	IncExtended("0xSafe")
	IncSignatureDropped("duplicate signer")
	AddSlotsSigned(3)
	ObserveStage("extend", time.Now())

	path := filepath.Join(t.TempDir(), "safe-ledger.prom")
	require.NoError(t, WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `safe_ledger_transactions_extended_total{safe="0xSafe"} 2`)
	assert.Contains(t, text, `safe_ledger_signatures_dropped_total{reason="duplicate signer"} 1`)
	assert.Contains(t, text, `safe_ledger_slots_signed_total 3`)
	assert.Contains(t, text, `safe_ledger_stage_duration_seconds_count{stage="extend"} 1`)
}
