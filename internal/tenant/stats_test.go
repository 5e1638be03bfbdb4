package tenant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"courier/internal/logger"
)

func TestStatsRecorderIncrements(t *testing.T) {
	repo := newMemRepository()
	rec := NewStatsRecorder(repo, logger.NopLogger())

	res := Resolution{
		Tenant:   &Tenant{ID: tenantID},
		SubScope: &SubScope{ID: subScopeID, TenantID: tenantID},
	}

	rec.RecordIngress(res)
	rec.RecordIngress(res)
	rec.RecordEgress(res)
	rec.Close()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, [2]int64{2, 1}, repo.tenantIncs[tenantID])
	assert.Equal(t, [2]int64{2, 1}, repo.subScopeIncs[subScopeID])
}

func TestStatsRecorderTenantOnly(t *testing.T) {
	repo := newMemRepository()
	rec := NewStatsRecorder(repo, logger.NopLogger())

	rec.RecordEgress(Resolution{Tenant: &Tenant{ID: tenantID}})
	rec.Close()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, [2]int64{0, 1}, repo.tenantIncs[tenantID])
	assert.Empty(t, repo.subScopeIncs)
}

func TestStatsRecorderNilTenant(t *testing.T) {
	repo := newMemRepository()
	rec := NewStatsRecorder(repo, logger.NopLogger())

	rec.RecordIngress(Resolution{})
	rec.Close()

	assert.Empty(t, repo.tenantIncs)
}

func TestStatsRecorderFailuresNeverBlock(t *testing.T) {
	repo := newMemRepository()
	repo.incErr = assert.AnError
	rec := NewStatsRecorder(repo, logger.NopLogger())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			rec.RecordIngress(Resolution{Tenant: &Tenant{ID: tenantID}})
		}
		rec.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stats recorder blocked on write failures")
	}
}
