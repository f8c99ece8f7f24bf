package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "DB_PATH", "PAGE_SIZE", "DB_SEED", "MIGRATIONS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "billing_system.db", cfg.Database.Path)
	assert.False(t, cfg.Database.IsPostgres())
	assert.Equal(t, 20, cfg.App.PageSize)
	assert.True(t, cfg.App.Seed)
	assert.False(t, cfg.App.Migrations)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("PAGE_SIZE", "50")
	t.Setenv("DB_SEED", "no")
	t.Setenv("MIGRATIONS", "yes")
	cfg := Load()
	assert.True(t, cfg.Database.IsPostgres())
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, 50, cfg.App.PageSize)
	assert.False(t, cfg.App.Seed)
	assert.True(t, cfg.App.Migrations)
	assert.Contains(t, cfg.Database.DSN(), "port=6543")
}

func TestLoadCompanyMissingFileUsesDefaults(t *testing.T) {
	c, err := LoadCompany(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCompany(), c)
}

func TestLoadCompanyOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "company.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: Acme Ltd\naddress:\n  - 1 Main St\ncurrency_symbol: \"€\"\n"), 0o600))
	c, err := LoadCompany(path)
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", c.Name)
	assert.Equal(t, []string{"1 Main St"}, c.Address)
	assert.Equal(t, "€", c.CurrencySymbol)
	assert.Equal(t, DefaultCompany().FooterNote, c.FooterNote)
}

func TestParseCompanyRejectsBadYAML(t *testing.T) {
	_, err := ParseCompany([]byte("name: [unterminated"))
	assert.Error(t, err)
}
