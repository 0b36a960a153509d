package domain

import "context"

// Account is the raw content of one on-chain account.
type Account struct {
	Owner    PublicKey
	Lamports uint64
	Data     []byte
}

// KeyedAccount pairs an account with its address.
type KeyedAccount struct {
	Key     PublicKey
	Account Account
}

// MemcmpFilter selects program accounts whose data contains Bytes at Offset.
type MemcmpFilter struct {
	Offset uint64
	Bytes  []byte
}

// AccountStore reads raw account state from the chain.
type AccountStore interface {
	// GetAccount returns ErrNotFound when the account does not exist.
	GetAccount(ctx context.Context, key PublicKey) (Account, error)
	// GetMultipleAccounts returns one entry per key, nil where missing.
	GetMultipleAccounts(ctx context.Context, keys []PublicKey) ([]*Account, error)
	GetProgramAccounts(ctx context.Context, program PublicKey, filters ...MemcmpFilter) ([]KeyedAccount, error)
}

// ChainStatus exposes cluster-level reads used by the wallet status endpoint.
type ChainStatus interface {
	GetBalance(ctx context.Context, key PublicKey) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (string, error)
}
