package ownership

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func common256(n int64) common.Hash {
	return common.BigToHash(big.NewInt(n))
}

func addrTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
