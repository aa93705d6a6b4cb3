package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM invoices":                   "SELECT",
		"  insert into invoices (id) values (1)":   "INSERT",
		"WITH x AS (SELECT 1) UPDATE invoices SET": "SELECT",
		"SAVEPOINT sp0x1":                          "SAVEPOINT",
		"":                                         "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, operationFromSQL(sql), sql)
	}
}
