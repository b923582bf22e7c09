package txm

import (
	"time"
)

const (
	MAX_RESUBMISSIONS       = 5
	MAX_FAILED_SUBMISSIONS  = 5
	DEFAULT_BUMP_PERCENT    = 50
	DEFAULT_RESUBMIT_PERIOD = 30 * time.Second
	DEFAULT_RESEND_LIMIT    = 10
)

type Config struct {
	ChainID uint64
	// MaxResubmissions only triggers a notification when exceeded.
	MaxResubmissions int64
	// MaxFailedSubmissions bounds the send loop of a single relay or retry call.
	MaxFailedSubmissions int64
	BumpPercent          int
	// ResubmitPollPeriod is how often stuck transactions are resubmitted.
	ResubmitPollPeriod time.Duration
	// ResendLimit is how many times the resender replaces a stuck transaction
	// before recording it as dropped.
	ResendLimit int
	Rules       []Rule
}

func (c *Config) setDefaults() {
	if c.MaxResubmissions <= 0 {
		c.MaxResubmissions = MAX_RESUBMISSIONS
	}
	if c.MaxFailedSubmissions <= 0 {
		c.MaxFailedSubmissions = MAX_FAILED_SUBMISSIONS
	}
	if c.BumpPercent <= 0 {
		c.BumpPercent = DEFAULT_BUMP_PERCENT
	}
	if c.ResubmitPollPeriod <= 0 {
		c.ResubmitPollPeriod = DEFAULT_RESUBMIT_PERIOD
	}
	if c.ResendLimit <= 0 {
		c.ResendLimit = DEFAULT_RESEND_LIMIT
	}
	if len(c.Rules) == 0 {
		c.Rules = DefaultRules()
	}
}
