package db

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsSerializationFailure(t *testing.T) {
	conflict := &pgconn.PgError{Code: "40001"}
	unique := &pgconn.PgError{Code: "23505"}

	assert.True(t, IsSerializationFailure(conflict))
	assert.True(t, IsSerializationFailure(fmt.Errorf("run in tx: %w", conflict)))
	assert.False(t, IsSerializationFailure(unique))
	assert.False(t, IsSerializationFailure(nil))
}
