package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "keto")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "ketoslim")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_SSLMODE", "")
	t.Setenv("DB_MAX_CONNS", "")

	cfg := ConfigFromEnv()
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, 10, cfg.MaxConns)
	assert.Equal(t, "host=localhost port=5432 user=keto password=pw dbname=ketoslim sslmode=disable", cfg.DSN())
}

func TestConnect_RequiresHost(t *testing.T) {
	_, err := Connect(Config{})
	assert.Error(t, err)
}
