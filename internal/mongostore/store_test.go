package mongostore

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	addr := common.HexToAddress("0xAbCdEf0000000000000000000000000000000001")
	require.Equal(t, "0xabcdef0000000000000000000000000000000001", normalizeAddress(addr))
}

func TestDecimalToMongoRoundTrip(t *testing.T) {
	d := decimal.NewFromInt(-12345)
	m, err := decimalToMongo(d)
	require.NoError(t, err)
	require.Equal(t, "-12345", m.String())
}
