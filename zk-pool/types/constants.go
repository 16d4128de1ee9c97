package types

import (
	"fmt"
	"math/big"

	"github.com/kysee/zkpool/utils"
)

var (
	// FieldSize is the order of the BN254 scalar field.
	FieldSize = utils.FieldModulus()

	// MaxExtAmount bounds the absolute value of a deposit or withdrawal and every note amount.
	MaxExtAmount = new(big.Int).Lsh(big.NewInt(1), 248)

	// MaxFee bounds the relayer fee.
	MaxFee = new(big.Int).Lsh(big.NewInt(1), 248)
)

// CheckConstants verifies MaxExtAmount + MaxFee < FieldSize, so a public amount
// computed from in-range values never wraps around the field.
func CheckConstants() error {
	sum := new(big.Int).Add(MaxExtAmount, MaxFee)
	if sum.Cmp(FieldSize) >= 0 {
		return fmt.Errorf("MaxExtAmount + MaxFee (%s) must be less than FieldSize (%s)", sum, FieldSize)
	}
	return nil
}
