package redis

import "errors"

var (
	ErrEmptyConnectionURL = errors.New("redis.empty_connection_url")
	ErrParseURL           = errors.New("redis.parse_url")
	ErrNotReady           = errors.New("redis.not_ready")
	ErrHealthcheckFailed  = errors.New("redis.healthcheck_failed")
)
