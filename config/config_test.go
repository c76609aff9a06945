package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAdminAllowlist(t *testing.T) {
	entries := parseAdminAllowlist("owner@pharmacy.test:s3cret:Owner, second@pharmacy.test:other")
	require.Len(t, entries, 2)

	assert.Equal(t, "owner@pharmacy.test", entries[0].Email)
	assert.Equal(t, "s3cret", entries[0].Passkey)
	assert.Equal(t, "Owner", entries[0].Name)

	assert.Equal(t, "second@pharmacy.test", entries[1].Email)
	assert.Equal(t, "other", entries[1].Passkey)
	assert.Empty(t, entries[1].Name)
}

func TestParseAdminAllowlistIgnoresMalformed(t *testing.T) {
	assert.Nil(t, parseAdminAllowlist(""))
	assert.Empty(t, parseAdminAllowlist("no-passkey"))
	assert.Empty(t, parseAdminAllowlist(":passkey-without-email"))
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 50.0, cfg.Business.DeliveryFee)
	assert.Equal(t, 10, cfg.Business.LowStockThreshold)
	assert.Equal(t, []string{"completed", "processing", "customer_confirmed"}, cfg.Business.SoldStatuses)
	assert.Equal(t, 5, cfg.Business.OutboxMaxAttempts)
}
