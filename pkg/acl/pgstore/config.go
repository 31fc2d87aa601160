package pgstore

import "time"

// Config holds the transaction settings of the store.
type Config struct {
	// LockTimeout bounds the wait for advisory and row locks; zero waits forever.
	LockTimeout time.Duration `env:"ACL_LOCK_TIMEOUT" envDefault:"5s"`

	// TxRetries is how many times a transaction failing with a serialization
	// error or deadlock is retried from scratch.
	TxRetries int `env:"ACL_TX_RETRIES" envDefault:"3"`
}
