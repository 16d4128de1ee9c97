package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/kysee/zkpool/zk-pool/chain"
	"github.com/kysee/zkpool/zk-pool/types"
)

// BridgeOutcome is how a delivered deposit was resolved: either committed
// into the pool, or forwarded to the recovery account.
type BridgeOutcome struct {
	Committed bool
	Receipt   *Receipt

	Recovered *uint256.Int
	Reason    error
}

// EncodeBridgePayload packs a transaction for OnBridgedDeposit.
func EncodeBridgePayload(tx *types.Transaction) ([]byte, error) {
	return tx.Bytes()
}

// OnBridgedDeposit handles tokens delivered by the messenger together with a
// transaction payload. The tokens are already held by the pool. If the
// transaction cannot be committed, for any reason, the amount is forwarded to
// the recovery account and the pool state is left untouched; the delivery
// itself never fails. Calls that are not deliveries of the pool token by the
// messenger are rejected with ErrUnauthorized.
func (p *Pool) OnBridgedDeposit(ctx context.Context, caller, token common.Address, amount *uint256.Int, payload []byte) (*BridgeOutcome, error) {
	if caller != p.cfg.Messenger {
		return nil, fmt.Errorf("%w: %s is not the messenger", ErrUnauthorized, caller.Hex())
	}
	if token != p.settlement.Token() {
		return nil, fmt.Errorf("%w: token %s is not accepted", ErrUnauthorized, token.Hex())
	}

	rcpt, reason := p.bridgedTransact(ctx, amount, payload)
	if reason == nil {
		return &BridgeOutcome{Committed: true, Receipt: rcpt}, nil
	}

	p.logger.Warn().Err(reason).Str("amount", amount.Dec()).Str("recovery", p.cfg.RecoveryAccount.Hex()).Msg("bridged deposit recovered")
	if !amount.IsZero() {
		p.mu.Lock()
		err := p.settlement.Settle([]chain.Op{{Kind: chain.OpTransfer, From: p.cfg.Self, To: p.cfg.RecoveryAccount, Amount: amount}})
		p.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("recover bridged deposit: %w", err)
		}
	}
	return &BridgeOutcome{Recovered: new(uint256.Int).Set(amount), Reason: reason}, nil
}

func (p *Pool) bridgedTransact(ctx context.Context, amount *uint256.Int, payload []byte) (*Receipt, error) {
	tx, err := types.TransactionFromBytes(payload)
	if err != nil {
		return nil, err
	}
	if tx.Args.ExtAmount == nil || tx.Args.ExtAmount.Cmp(amount.ToBig()) != 0 {
		return nil, fmt.Errorf("%w: external amount %v does not match bridged amount %s", ErrLimitExceeded, tx.Args.ExtAmount, amount.Dec())
	}
	return p.OnTransact(ctx, p.cfg.Self, tx)
}
