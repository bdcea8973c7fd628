package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreConfigDSN(t *testing.T) {
	cfg := StoreConfig{
		Type:     "mysql",
		Host:     "localhost",
		Port:     3306,
		Username: "sq",
		Password: "sq",
		Database: "sqtracker",
	}
	require.Equal(t, "sq:sq@tcp(localhost:3306)/sqtracker", cfg.DSN())

	cfg.Properties = "parseTime=true"
	require.Equal(t, "sq:sq@tcp(localhost:3306)/sqtracker?parseTime=true", cfg.DSN())
}
