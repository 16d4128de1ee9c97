package pool

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/kysee/zkpool/zk-pool/chain"
	"github.com/kysee/zkpool/zk-pool/types"
)

// authorize admits messages relayed by the messenger from the governance account on the governance chain.
func (p *Pool) authorize(msg chain.CrossChainMessage) error {
	if msg.Caller != p.cfg.Messenger || msg.SourceChainID != p.cfg.GovChainID || msg.Sender != p.cfg.Governance {
		return fmt.Errorf("%w: governance call from %s on chain %d via %s", ErrUnauthorized, msg.Sender.Hex(), msg.SourceChainID, msg.Caller.Hex())
	}
	return nil
}

func (p *Pool) SetMinimumWithdrawalAmount(msg chain.CrossChainMessage, amount *uint256.Int) error {
	return p.ConfigureLimits(msg, amount, nil)
}

func (p *Pool) SetMaximumDepositAmount(msg chain.CrossChainMessage, amount *uint256.Int) error {
	return p.ConfigureLimits(msg, nil, amount)
}

// ConfigureLimits sets both limits. A nil limit is left unchanged.
func (p *Pool) ConfigureLimits(msg chain.CrossChainMessage, minWithdrawal, maxDeposit *uint256.Int) error {
	if err := p.authorize(msg); err != nil {
		return err
	}
	if maxDeposit != nil && maxDeposit.ToBig().Cmp(types.MaxExtAmount) > 0 {
		return fmt.Errorf("%w: maximum deposit %s above %s", ErrLimitExceeded, maxDeposit.Dec(), types.MaxExtAmount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if minWithdrawal != nil {
		p.minWithdrawal = new(uint256.Int).Set(minWithdrawal)
	}
	if maxDeposit != nil {
		p.maxDeposit = new(uint256.Int).Set(maxDeposit)
	}
	p.logger.Info().Str("minWithdrawal", p.minWithdrawal.Dec()).Str("maxDeposit", p.maxDeposit.Dec()).Msg("limits configured")
	return nil
}
