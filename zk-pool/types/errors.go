package types

import "errors"

var (
	ErrDecryption      = errors.New("decryption error")
	ErrKeyMismatch     = errors.New("private key does not match note owner")
	ErrNoPrivateKey    = errors.New("keypair has no private key")
	ErrAmountTooLarge  = errors.New("note amount exceeds maximum")
	ErrInvalidArity    = errors.New("unsupported number of inputs")
	ErrInvalidOutputs  = errors.New("transaction must have exactly two outputs")
	ErrInvalidEncoding = errors.New("invalid encoding")
	ErrNonCanonical    = errors.New("public input is not a canonical field element")
)
