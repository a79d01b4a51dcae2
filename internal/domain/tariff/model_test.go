package tariff

import (
	"testing"
	"time"

	"github.com/acadfin/treasury/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func activeRecord(scope func(*TariffRecord)) *TariffRecord {
	t := &TariffRecord{
		EntityID:                  "fent_1",
		ProductID:                 "prod_1",
		BeginDate:                 time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		BaseAmount:                decimal.NewFromInt(100),
		DueDateType:               types.DueDateDaysAfterCreation,
		NumberOfDaysAfterCreation: 30,
	}
	t.Status = types.StatusActive
	if scope != nil {
		scope(t)
	}
	return t
}

func TestScopeLevel(t *testing.T) {
	assert.Equal(t, types.ScopeLevelBroad, activeRecord(nil).ScopeLevel())

	assert.Equal(t, types.ScopeLevelDegreeType, activeRecord(func(r *TariffRecord) {
		r.ScopeDegreeTypeCode = lo.ToPtr("master")
	}).ScopeLevel())

	assert.Equal(t, types.ScopeLevelDegree, activeRecord(func(r *TariffRecord) {
		r.ScopeDegreeTypeCode = lo.ToPtr("master")
		r.ScopeDegreeCode = lo.ToPtr("M-CS")
	}).ScopeLevel())

	assert.Equal(t, types.ScopeLevelCycle, activeRecord(func(r *TariffRecord) {
		r.ScopeDegreeTypeCode = lo.ToPtr("master")
		r.ScopeDegreeCode = lo.ToPtr("M-CS")
		r.ScopeCycleCode = lo.ToPtr("2")
	}).ScopeLevel())
}

func TestIsActiveAtTreatsEndDateAsInclusiveEndOfDay(t *testing.T) {
	record := activeRecord(func(r *TariffRecord) {
		r.EndDate = lo.ToPtr(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	})

	assert.False(t, record.IsActiveAt(time.Date(2025, 8, 31, 23, 0, 0, 0, time.UTC)))
	assert.True(t, record.IsActiveAt(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, record.IsActiveAt(time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, record.IsActiveAt(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)))
}

func TestIsActiveAtIgnoresInactiveRecords(t *testing.T) {
	record := activeRecord(nil)
	record.Status = types.StatusInactive

	assert.False(t, record.IsActiveAt(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)))
}

func TestOverlapsWith(t *testing.T) {
	bounded := activeRecord(func(r *TariffRecord) {
		r.EndDate = lo.ToPtr(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	})

	openEnded := activeRecord(func(r *TariffRecord) {
		r.BeginDate = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	})
	assert.False(t, bounded.OverlapsWith(openEnded))
	assert.False(t, openEnded.OverlapsWith(bounded))

	overlapping := activeRecord(func(r *TariffRecord) {
		r.BeginDate = time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	})
	assert.True(t, bounded.OverlapsWith(overlapping))
	assert.True(t, overlapping.OverlapsWith(bounded))

	// Two open-ended intervals always intersect.
	assert.True(t, activeRecord(nil).OverlapsWith(openEnded))
}

func TestScopeCovers(t *testing.T) {
	broad := activeRecord(nil)
	typeScoped := activeRecord(func(r *TariffRecord) {
		r.ScopeDegreeTypeCode = lo.ToPtr("master")
	})
	degreeScoped := activeRecord(func(r *TariffRecord) {
		r.ScopeDegreeTypeCode = lo.ToPtr("master")
		r.ScopeDegreeCode = lo.ToPtr("M-CS")
	})
	cycleScoped := activeRecord(func(r *TariffRecord) {
		r.ScopeDegreeTypeCode = lo.ToPtr("master")
		r.ScopeDegreeCode = lo.ToPtr("M-CS")
		r.ScopeCycleCode = lo.ToPtr("2")
	})

	assert.True(t, broad.ScopeCovers(typeScoped))
	assert.True(t, broad.ScopeCovers(cycleScoped))
	assert.True(t, typeScoped.ScopeCovers(degreeScoped))
	assert.True(t, degreeScoped.ScopeCovers(cycleScoped))

	// Narrower never covers broader, and cycle only covers itself.
	assert.False(t, typeScoped.ScopeCovers(broad))
	assert.False(t, degreeScoped.ScopeCovers(typeScoped))
	assert.False(t, cycleScoped.ScopeCovers(degreeScoped))
	assert.True(t, cycleScoped.ScopeCovers(cycleScoped))
}

func TestValidateScopeChain(t *testing.T) {
	missingDegree := activeRecord(func(r *TariffRecord) {
		r.ScopeCycleCode = lo.ToPtr("2")
	})
	assert.Error(t, missingDegree.Validate())

	missingType := activeRecord(func(r *TariffRecord) {
		r.ScopeDegreeCode = lo.ToPtr("M-CS")
	})
	assert.Error(t, missingType.Validate())

	assert.NoError(t, activeRecord(func(r *TariffRecord) {
		r.ScopeDegreeTypeCode = lo.ToPtr("master")
		r.ScopeDegreeCode = lo.ToPtr("M-CS")
		r.ScopeCycleCode = lo.ToPtr("2")
	}).Validate())
}

func TestValidateDueDateRule(t *testing.T) {
	fixedWithoutDate := activeRecord(func(r *TariffRecord) {
		r.DueDateType = types.DueDateFixed
		r.NumberOfDaysAfterCreation = 0
	})
	assert.Error(t, fixedWithoutDate.Validate())

	unknown := activeRecord(func(r *TariffRecord) {
		r.DueDateType = types.DueDateCalculationType("whenever")
	})
	assert.Error(t, unknown.Validate())
}

func TestDueDateFor(t *testing.T) {
	when := time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC)

	relative := activeRecord(nil)
	assert.Equal(t, when.AddDate(0, 0, 30), relative.DueDateFor(when))

	fixed := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	record := activeRecord(func(r *TariffRecord) {
		r.DueDateType = types.DueDateFixed
		r.FixedDueDate = &fixed
	})
	assert.Equal(t, fixed, record.DueDateFor(when))
}
