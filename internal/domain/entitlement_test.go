package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntitlement(t *testing.T) {
	userID := uuid.New()

	e := NewEntitlement(userID, PlanExplorer)
	assert.Equal(t, userID, e.UserID)
	assert.Equal(t, PlanExplorer, e.Plan)
	assert.Equal(t, 20, e.GenerationRemaining)
	assert.Equal(t, 1, e.AnalysisRemaining)
	assert.Equal(t, 1, e.BlueprintRemaining)
	assert.Equal(t, 0, e.PDFExportsUsed)

	// Unknown plan initializes with base counters, not unlimited.
	e = NewEntitlement(userID, Plan("mystery"))
	assert.Equal(t, 3, e.GenerationRemaining)
	assert.Equal(t, 0, e.BlueprintRemaining)
}

func TestEntitlementRemaining(t *testing.T) {
	e := NewEntitlement(uuid.New(), PlanBase)
	assert.Equal(t, 3, e.Remaining(ActionGeneration))
	assert.Equal(t, 1, e.Remaining(ActionAnalysis))
	assert.Equal(t, 0, e.Remaining(ActionBlueprint))
	assert.Equal(t, 0, e.Remaining(CreditAction("unknown")))
}

func TestUsageFor(t *testing.T) {
	t.Run("finite plan exposes counters and caps", func(t *testing.T) {
		e := NewEntitlement(uuid.New(), PlanExplorer)
		e.GenerationRemaining = 7
		e.PDFExportsUsed = 2

		usage := UsageFor(e)
		require.NotNil(t, usage.GenerationRemaining)
		assert.Equal(t, 7, *usage.GenerationRemaining)
		require.NotNil(t, usage.AnalysisRemaining)
		require.NotNil(t, usage.BlueprintRemaining)
		assert.Equal(t, 2, usage.PDFExportsUsed)
		require.NotNil(t, usage.PDFExportCap)
		assert.Equal(t, 10, *usage.PDFExportCap)
		assert.True(t, usage.Features[FeatureBlueprint])
		assert.False(t, usage.Features[FeatureKanban])
	})

	t.Run("builder plan reads as unlimited", func(t *testing.T) {
		usage := UsageFor(NewEntitlement(uuid.New(), PlanBuilder))
		assert.Nil(t, usage.GenerationRemaining)
		assert.Nil(t, usage.AnalysisRemaining)
		assert.Nil(t, usage.BlueprintRemaining)
		assert.Nil(t, usage.PDFExportCap)
		assert.True(t, usage.Features[FeatureKanban])
		assert.True(t, usage.Features[FeatureBlueprint])
	})
}

func TestQuotaExhaustedError(t *testing.T) {
	err := QuotaExhausted("entitlement.consume", ActionGeneration, PlanBase)
	assert.Equal(t, EPAYMENT, ErrorCode(err))
	assert.True(t, IsQuotaExhausted(err))
	assert.Contains(t, ErrorMessage(err), "generation")
	assert.Contains(t, ErrorMessage(err), "base")
}

func TestFeatureLockedError(t *testing.T) {
	err := FeatureLocked("board.get", FeatureKanban, PlanBuilder)
	assert.Equal(t, EFORBIDDEN, ErrorCode(err))
	assert.False(t, IsQuotaExhausted(err))
	assert.Contains(t, ErrorMessage(err), "kanban")
	assert.Contains(t, ErrorMessage(err), "builder")
}
