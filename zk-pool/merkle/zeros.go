package merkle

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kysee/zkpool/utils"
	"github.com/kysee/zkpool/zk-pool/types"
)

// MaxHeight bounds the tree height; capacity is 2^height leaves.
const MaxHeight = 32

// ZeroLeaf fills every unused leaf: Keccak256("zkpool") reduced into the field.
var ZeroLeaf = types.HashFromElement(utils.ReduceBytes(crypto.Keccak256([]byte("zkpool"))))

// zeros[i] is the root of an empty subtree of height i.
var zeros [MaxHeight + 1]types.Hash

func init() {
	zeros[0] = ZeroLeaf
	for i := 1; i <= MaxHeight; i++ {
		zeros[i] = HashLeftRight(zeros[i-1], zeros[i-1])
	}
}

// Zero returns the root of an empty subtree of the given height.
func Zero(height int) types.Hash {
	return zeros[height]
}

func HashLeftRight(left, right types.Hash) types.Hash {
	return types.HashFromElement(utils.HashElements(left.Element(), right.Element()))
}
