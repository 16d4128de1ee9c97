// Package chain is an in-memory execution environment for the pool: one
// fungible token with balances and allowances, a bridge that escrows
// withdrawals bound for the other chain, and a cross-chain messenger.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient token balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnknownOp             = errors.New("unknown settlement operation")
)

type OpKind uint8

const (
	// OpTransfer moves tokens held by From to To.
	OpTransfer OpKind = iota + 1
	// OpTransferFrom moves tokens from From to To, spending Spender's allowance.
	OpTransferFrom
	// OpBridgeOut moves tokens from From into the bridge escrow, bound for To on the other chain.
	OpBridgeOut
)

func (k OpKind) String() string {
	switch k {
	case OpTransfer:
		return "transfer"
	case OpTransferFrom:
		return "transferFrom"
	case OpBridgeOut:
		return "bridgeOut"
	default:
		return fmt.Sprintf("op(%d)", uint8(k))
	}
}

// Op is one token movement of a settlement batch.
type Op struct {
	Kind    OpKind
	Spender common.Address
	From    common.Address
	To      common.Address
	Amount  *uint256.Int
}

// Withdrawal is a bridge egress entry waiting to be relayed to the other chain.
type Withdrawal struct {
	Seq       uint64
	From      common.Address
	Recipient common.Address
	Amount    *uint256.Int
}

// Ledger holds the token state.
type Ledger struct {
	mu sync.RWMutex

	token      common.Address
	bridge     common.Address
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
	outbox     []Withdrawal
}

func NewLedger(token, bridge common.Address) *Ledger {
	return &Ledger{
		token:      token,
		bridge:     bridge,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (l *Ledger) Token() common.Address {
	return l.token
}

// Bridge is the account that escrows tokens leaving through the bridge.
func (l *Ledger) Bridge() common.Address {
	return l.bridge
}

func (l *Ledger) Mint(to common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(l.balances, to, amount)
}

func (l *Ledger) BalanceOf(addr common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[addr]; ok {
		return new(uint256.Int).Set(b)
	}
	return uint256.NewInt(0)
}

func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.allowances[owner]
	if !ok {
		m = make(map[common.Address]*uint256.Int)
		l.allowances[owner] = m
	}
	m[spender] = new(uint256.Int).Set(amount)
}

func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if a, ok := l.allowances[owner][spender]; ok {
		return new(uint256.Int).Set(a)
	}
	return uint256.NewInt(0)
}

// Transfer is a single-op Settle.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	return l.Settle([]Op{{Kind: OpTransfer, From: from, To: to, Amount: amount}})
}

// Outbox returns the bridge egress entries recorded so far.
func (l *Ledger) Outbox() []Withdrawal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Withdrawal, len(l.outbox))
	copy(out, l.outbox)
	return out
}

// Settle applies ops in order as one batch: either every op applies or none does.
func (l *Ledger) Settle(ops []Op) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// dry run on copies of the touched entries
	balances := make(map[common.Address]*uint256.Int)
	allowances := make(map[[2]common.Address]*uint256.Int)
	balanceOf := func(a common.Address) *uint256.Int {
		if b, ok := balances[a]; ok {
			return b
		}
		b := new(uint256.Int)
		if cur, ok := l.balances[a]; ok {
			b.Set(cur)
		}
		balances[a] = b
		return b
	}

	for i, op := range ops {
		if op.Amount == nil || op.Amount.IsZero() {
			continue
		}
		switch op.Kind {
		case OpTransfer, OpBridgeOut:
		case OpTransferFrom:
			key := [2]common.Address{op.From, op.Spender}
			a, ok := allowances[key]
			if !ok {
				a = new(uint256.Int)
				if cur, ok := l.allowances[op.From][op.Spender]; ok {
					a.Set(cur)
				}
				allowances[key] = a
			}
			if a.Lt(op.Amount) {
				return fmt.Errorf("op %d: %w: %s has(%s), need(%s)", i, ErrInsufficientAllowance, op.Spender.Hex(), a.Dec(), op.Amount.Dec())
			}
			a.Sub(a, op.Amount)
		default:
			return fmt.Errorf("op %d: %w: %s", i, ErrUnknownOp, op.Kind)
		}

		from := balanceOf(op.From)
		if from.Lt(op.Amount) {
			return fmt.Errorf("op %d: %w: %s has(%s), need(%s)", i, ErrInsufficientBalance, op.From.Hex(), from.Dec(), op.Amount.Dec())
		}
		from.Sub(from, op.Amount)
		to := op.To
		if op.Kind == OpBridgeOut {
			to = l.bridge
		}
		balanceOf(to).Add(balanceOf(to), op.Amount)
	}

	for a, b := range balances {
		l.balances[a] = b
	}
	for key, a := range allowances {
		l.allowances[key[0]][key[1]] = a
	}
	for _, op := range ops {
		if op.Kind == OpBridgeOut && op.Amount != nil && !op.Amount.IsZero() {
			l.outbox = append(l.outbox, Withdrawal{
				Seq:       uint64(len(l.outbox)),
				From:      op.From,
				Recipient: op.To,
				Amount:    new(uint256.Int).Set(op.Amount),
			})
		}
	}
	return nil
}

func (l *Ledger) credit(m map[common.Address]*uint256.Int, to common.Address, amount *uint256.Int) {
	b, ok := m[to]
	if !ok {
		b = new(uint256.Int)
		m[to] = b
	}
	b.Add(b, amount)
}
