package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/quote-desk-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "quotes",
		Password: "secret",
		Name:     "quote_desk",
		SSLMode:  "require",
	})
	assert.Equal(t, "host=db port=5433 user=quotes password=secret dbname=quote_desk sslmode=require", dsn)
}
