package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ParseChain(t *testing.T) {
	t.Run("Should parse known chains including aliases", func(t *testing.T) {
		for name, expected := range map[string]Chain{
			"ethereum": Chain_Ethereum,
			"eth":      Chain_Ethereum,
			"Solana":   Chain_Solana,
			" sol ":    Chain_Solana,
		} {
			chain, err := ParseChain(name)
			assert.Nil(t, err)
			assert.Equal(t, expected, chain)
		}
	})
	t.Run("Should reject unknown chains", func(t *testing.T) {
		_, err := ParseChain("dogecoin")
		assert.NotNil(t, err)
	})
}

func Test_TreasuryLookup(t *testing.T) {
	t.Run("Should resolve a configured treasury", func(t *testing.T) {
		treasury, ok := GetTreasuryForCasinoAndChain("midnight", Chain_Ethereum)
		assert.True(t, ok)
		assert.NotEmpty(t, treasury)
	})
	t.Run("Should miss for a casino without a treasury on the chain", func(t *testing.T) {
		_, ok := GetTreasuryForCasinoAndChain("redfang", Chain_Solana)
		assert.False(t, ok)
	})
	t.Run("Should miss for an unknown casino", func(t *testing.T) {
		_, ok := GetTreasuryForCasinoAndChain("nonexistent", Chain_Ethereum)
		assert.False(t, ok)
	})
	t.Run("Should list only casinos with a treasury on the chain", func(t *testing.T) {
		casinos := ListCasinosForChain(Chain_Solana)
		for _, c := range casinos {
			_, ok := c.Treasuries[Chain_Solana]
			assert.True(t, ok)
		}
		assert.Len(t, casinos, 2)
	})
}

func Test_KebabToSnakeCase(t *testing.T) {
	assert.Equal(t, "trace_request_pool_size", KebabToSnakeCase(TraceRequestPoolSize))
	assert.Equal(t, "database_db_name", KebabToSnakeCase(DatabaseDbName))
}
