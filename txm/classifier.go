package txm

import (
	"fmt"
	"strings"

	"github.com/bcnmy/bundler-sub000/network"
)

// Class is the recovery category of a failed submission.
type Class int

const (
	ClassUnrecognized Class = iota
	ClassNonceTooLow
	ClassUnderpriced
	ClassPriorityFeeAboveMaxFee
	ClassAlreadyKnown
	ClassInsufficientFunds
	ClassNetwork
	ClassIntrinsicGasTooLow
)

var classNames = map[Class]string{
	ClassUnrecognized:           "unrecognized",
	ClassNonceTooLow:            "nonce_too_low",
	ClassUnderpriced:            "underpriced",
	ClassPriorityFeeAboveMaxFee: "priority_fee_above_max_fee",
	ClassAlreadyKnown:           "already_known",
	ClassInsufficientFunds:      "insufficient_funds",
	ClassNetwork:                "network",
	ClassIntrinsicGasTooLow:     "intrinsic_gas_too_low",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Class(%d)", c)
}

func ParseClass(s string) (Class, error) {
	for c, name := range classNames {
		if name == s {
			return c, nil
		}
	}
	return ClassUnrecognized, fmt.Errorf("unknown error class %q", s)
}

type Predicate func(err *network.Error) bool

// MessageContains matches when the lower-cased message contains any substring.
func MessageContains(substrings ...string) Predicate {
	lowered := make([]string, len(substrings))
	for i, s := range substrings {
		lowered[i] = strings.ToLower(s)
	}
	return func(err *network.Error) bool {
		msg := strings.ToLower(err.Message)
		for _, s := range lowered {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	}
}

func KindIs(kinds ...network.Kind) Predicate {
	return func(err *network.Error) bool {
		for _, k := range kinds {
			if err.Kind == k {
				return true
			}
		}
		return false
	}
}

func AnyOf(preds ...Predicate) Predicate {
	return func(err *network.Error) bool {
		for _, p := range preds {
			if p(err) {
				return true
			}
		}
		return false
	}
}

type Rule struct {
	Class Class
	Match Predicate
}

var DefaultSubstrings = map[Class][]string{
	ClassNonceTooLow: {
		"nonce too low",
		"nonce has already been used",
		"oldnonce",
	},
	ClassUnderpriced: {
		"replacement transaction underpriced",
		"transaction underpriced",
		"underpriced",
		"max fee per gas less than block base fee",
		"fee cap less than block base fee",
		"feecap too low",
	},
	ClassPriorityFeeAboveMaxFee: {
		"max priority fee per gas higher than max fee per gas",
		"maxpriorityfeepergas higher than maxfeepergas",
		"tip higher than fee cap",
	},
	ClassAlreadyKnown: {
		"already known",
		"known transaction",
		"alreadyknown",
		"already imported",
	},
	ClassInsufficientFunds: {
		"insufficient funds",
		"insufficient balance",
	},
	ClassNetwork: {
		"timeout",
		"timed out",
		"connection reset",
		"connection refused",
		"too many requests",
		"rate limit",
		"bad gateway",
		"service unavailable",
		"unexpected eof",
		"header not found",
	},
	ClassIntrinsicGasTooLow: {
		"intrinsic gas too low",
	},
}

// classOrder is the priority in which rules are evaluated.
var classOrder = []Class{
	ClassNonceTooLow,
	ClassUnderpriced,
	ClassPriorityFeeAboveMaxFee,
	ClassAlreadyKnown,
	ClassInsufficientFunds,
	ClassNetwork,
	ClassIntrinsicGasTooLow,
}

func DefaultRules() []Rule {
	rules, _ := RulesWithOverrides(nil)
	return rules
}

// RulesWithOverrides builds the taxonomy in fixed priority order, replacing the
// substrings of any class named in overrides.
func RulesWithOverrides(overrides map[string][]string) ([]Rule, error) {
	substrings := map[Class][]string{}
	for c, s := range DefaultSubstrings {
		substrings[c] = s
	}
	for name, s := range overrides {
		c, err := ParseClass(name)
		if err != nil {
			return nil, err
		}
		if c == ClassUnrecognized {
			return nil, fmt.Errorf("class %q cannot be overridden", name)
		}
		substrings[c] = s
	}

	rules := make([]Rule, 0, len(classOrder))
	for _, c := range classOrder {
		match := MessageContains(substrings[c]...)
		if c == ClassNetwork {
			match = AnyOf(KindIs(network.KindTransport, network.KindTimeout, network.KindRateLimited), match)
		}
		rules = append(rules, Rule{Class: c, Match: match})
	}
	return rules, nil
}

type Classifier struct {
	rules []Rule
}

func NewClassifier(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify returns the class of the first matching rule.
func (c *Classifier) Classify(err *network.Error) Class {
	if err == nil {
		return ClassUnrecognized
	}
	for _, r := range c.rules {
		if r.Match(err) {
			return r.Class
		}
	}
	return ClassUnrecognized
}
