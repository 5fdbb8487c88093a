package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCancelEventRepo_WideQueryNeverDemotesFilledOrders(t *testing.T) {
	repo := NewCancelEventRepo(nil, false)
	query := repo.buildQuery("cancel_events", 2)

	assert.Contains(t, query, "ON CONFLICT (id) DO UPDATE SET")
	assert.Contains(t, query, "WHERE orders.fillability_status IS DISTINCT FROM 'filled'")
	assert.Contains(t, query, "$20", "two events bind twenty parameters")
}

func TestCancelEventRepo_FocusQueryOnlyTouchesExistingUnfilledOrders(t *testing.T) {
	repo := NewCancelEventRepo(nil, true)
	query := repo.buildQuery("cancel_events", 1)

	assert.Contains(t, query, "UPDATE orders o SET")
	assert.Contains(t, query, "o.fillability_status IS DISTINCT FROM 'filled'")
	assert.NotContains(t, query, "INSERT INTO orders", "focus mode must not create order stubs")
}

func TestCancelEventRepo_OnChainEventsUseTheirOwnTable(t *testing.T) {
	repo := NewCancelEventRepo(nil, false)
	query := repo.buildQuery("cancel_events_onchain", 1)

	assert.Contains(t, query, "INSERT INTO cancel_events_onchain")
}
