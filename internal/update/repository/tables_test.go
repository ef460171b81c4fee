package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTablesName(t *testing.T) {
	assert.Equal(t, "customer_group", NewTables("").Name("customer_group"))
	assert.Equal(t, "mage_customer_group", NewTables("mage_").Name("customer_group"))
}
