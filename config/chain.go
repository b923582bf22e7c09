package config

import (
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/slices"

	"github.com/smartcontractkit/chainlink-common/pkg/config"

	relayer "github.com/bcnmy/bundler-sub000"
)

// Global chain defaults.
var defaultConfigSet = chainConfigSet{
	// poll period for balance monitoring
	BalancePollPeriod: 15 * time.Second,
	// how long a submitted transaction is waited on before it is treated as stuck
	ReceiptTimeout:      2 * time.Minute,
	ReceiptPollInterval: 2 * time.Second,
	// how often stuck transactions are resubmitted with bumped fees
	ResubmitPollPeriod:     30 * time.Second,
	EIP1559:                true,
	BumpPercent:            50,
	MaxResubmissions:       5,
	MaxFailedSubmissions:   5,
	ResendLimit:            10,
	FrontRunLookbackBlocks: 100,
	// delay before a request is republished when no relayer is idle
	RequeueDelay:       time.Second,
	MaxRequeueAttempts: 20,
	QueueSize:          4096,
}

var defaultRelayersSet = relayersConfigSet{
	MinCount:                15,
	MaxCount:                25,
	InactiveThreshold:       5,
	NewInstanceCount:        5,
	NodePathIndex:           0,
	FundingBalanceThreshold: big.NewInt(params.Ether / 10),
	FundingAmount:           big.NewInt(params.Ether / 5),
	FundingLockTTL:          10 * time.Second,
}

type chainConfigSet struct {
	BalancePollPeriod      time.Duration
	ReceiptTimeout         time.Duration
	ReceiptPollInterval    time.Duration
	ResubmitPollPeriod     time.Duration
	EIP1559                bool
	BumpPercent            int
	MaxResubmissions       int64
	MaxFailedSubmissions   int64
	ResendLimit            int
	FrontRunLookbackBlocks uint64
	RequeueDelay           time.Duration
	MaxRequeueAttempts     int
	QueueSize              int
}

type relayersConfigSet struct {
	MinCount                int
	MaxCount                int
	InactiveThreshold       int
	NewInstanceCount        int
	NodePathIndex           uint32
	FundingBalanceThreshold *big.Int
	FundingAmount           *big.Int
	FundingLockTTL          time.Duration
}

type ChainConfig struct {
	BalancePollPeriod      *config.Duration
	ReceiptTimeout         *config.Duration
	ReceiptPollInterval    *config.Duration
	ResubmitPollPeriod     *config.Duration
	EIP1559                *bool
	BumpPercent            *int
	MaxResubmissions       *int64
	MaxFailedSubmissions   *int64
	ResendLimit            *int
	FrontRunLookbackBlocks *uint64
	RequeueDelay           *config.Duration
	MaxRequeueAttempts     *int
	QueueSize              *int
	// EntryPoints are the contracts whose UserOperationEvent logs are trusted.
	EntryPoints []string
	// ErrorTaxonomy replaces the message substrings of the named error classes.
	ErrorTaxonomy map[string][]string
}

func (c *ChainConfig) SetDefaults() {
	if c.BalancePollPeriod == nil {
		c.BalancePollPeriod = config.MustNewDuration(defaultConfigSet.BalancePollPeriod)
	}
	if c.ReceiptTimeout == nil {
		c.ReceiptTimeout = config.MustNewDuration(defaultConfigSet.ReceiptTimeout)
	}
	if c.ReceiptPollInterval == nil {
		c.ReceiptPollInterval = config.MustNewDuration(defaultConfigSet.ReceiptPollInterval)
	}
	if c.ResubmitPollPeriod == nil {
		c.ResubmitPollPeriod = config.MustNewDuration(defaultConfigSet.ResubmitPollPeriod)
	}
	if c.EIP1559 == nil {
		c.EIP1559 = ptr(defaultConfigSet.EIP1559)
	}
	if c.BumpPercent == nil {
		c.BumpPercent = ptr(defaultConfigSet.BumpPercent)
	}
	if c.MaxResubmissions == nil {
		c.MaxResubmissions = ptr(defaultConfigSet.MaxResubmissions)
	}
	if c.MaxFailedSubmissions == nil {
		c.MaxFailedSubmissions = ptr(defaultConfigSet.MaxFailedSubmissions)
	}
	if c.ResendLimit == nil {
		c.ResendLimit = ptr(defaultConfigSet.ResendLimit)
	}
	if c.FrontRunLookbackBlocks == nil {
		c.FrontRunLookbackBlocks = ptr(defaultConfigSet.FrontRunLookbackBlocks)
	}
	if c.RequeueDelay == nil {
		c.RequeueDelay = config.MustNewDuration(defaultConfigSet.RequeueDelay)
	}
	if c.MaxRequeueAttempts == nil {
		c.MaxRequeueAttempts = ptr(defaultConfigSet.MaxRequeueAttempts)
	}
	if c.QueueSize == nil {
		c.QueueSize = ptr(defaultConfigSet.QueueSize)
	}
}

func setFromChain(c, f *ChainConfig) {
	if f.BalancePollPeriod != nil {
		c.BalancePollPeriod = f.BalancePollPeriod
	}
	if f.ReceiptTimeout != nil {
		c.ReceiptTimeout = f.ReceiptTimeout
	}
	if f.ReceiptPollInterval != nil {
		c.ReceiptPollInterval = f.ReceiptPollInterval
	}
	if f.ResubmitPollPeriod != nil {
		c.ResubmitPollPeriod = f.ResubmitPollPeriod
	}
	if f.EIP1559 != nil {
		c.EIP1559 = f.EIP1559
	}
	if f.BumpPercent != nil {
		c.BumpPercent = f.BumpPercent
	}
	if f.MaxResubmissions != nil {
		c.MaxResubmissions = f.MaxResubmissions
	}
	if f.MaxFailedSubmissions != nil {
		c.MaxFailedSubmissions = f.MaxFailedSubmissions
	}
	if f.ResendLimit != nil {
		c.ResendLimit = f.ResendLimit
	}
	if f.FrontRunLookbackBlocks != nil {
		c.FrontRunLookbackBlocks = f.FrontRunLookbackBlocks
	}
	if f.RequeueDelay != nil {
		c.RequeueDelay = f.RequeueDelay
	}
	if f.MaxRequeueAttempts != nil {
		c.MaxRequeueAttempts = f.MaxRequeueAttempts
	}
	if f.QueueSize != nil {
		c.QueueSize = f.QueueSize
	}
	if f.EntryPoints != nil {
		c.EntryPoints = f.EntryPoints
	}
	if f.ErrorTaxonomy != nil {
		c.ErrorTaxonomy = f.ErrorTaxonomy
	}
}

// RelayersConfig sizes and funds the relayer pool of a chain.
type RelayersConfig struct {
	MinCount          *int
	MaxCount          *int
	InactiveThreshold *int
	NewInstanceCount  *int
	// NodePathIndex selects the account branch relayers are derived from.
	NodePathIndex           *uint32
	FundingBalanceThreshold *Wei
	FundingAmount           *Wei
	FundingLockTTL          *config.Duration
}

func (r *RelayersConfig) SetDefaults() {
	if r.MinCount == nil {
		r.MinCount = ptr(defaultRelayersSet.MinCount)
	}
	if r.MaxCount == nil {
		r.MaxCount = ptr(defaultRelayersSet.MaxCount)
	}
	if r.InactiveThreshold == nil {
		r.InactiveThreshold = ptr(defaultRelayersSet.InactiveThreshold)
	}
	if r.NewInstanceCount == nil {
		r.NewInstanceCount = ptr(defaultRelayersSet.NewInstanceCount)
	}
	if r.NodePathIndex == nil {
		r.NodePathIndex = ptr(defaultRelayersSet.NodePathIndex)
	}
	if r.FundingBalanceThreshold == nil {
		r.FundingBalanceThreshold = NewWei(defaultRelayersSet.FundingBalanceThreshold)
	}
	if r.FundingAmount == nil {
		r.FundingAmount = NewWei(defaultRelayersSet.FundingAmount)
	}
	if r.FundingLockTTL == nil {
		r.FundingLockTTL = config.MustNewDuration(defaultRelayersSet.FundingLockTTL)
	}
}

func setFromRelayers(r, f *RelayersConfig) {
	if f.MinCount != nil {
		r.MinCount = f.MinCount
	}
	if f.MaxCount != nil {
		r.MaxCount = f.MaxCount
	}
	if f.InactiveThreshold != nil {
		r.InactiveThreshold = f.InactiveThreshold
	}
	if f.NewInstanceCount != nil {
		r.NewInstanceCount = f.NewInstanceCount
	}
	if f.NodePathIndex != nil {
		r.NodePathIndex = f.NodePathIndex
	}
	if f.FundingBalanceThreshold != nil {
		r.FundingBalanceThreshold = f.FundingBalanceThreshold
	}
	if f.FundingAmount != nil {
		r.FundingAmount = f.FundingAmount
	}
	if f.FundingLockTTL != nil {
		r.FundingLockTTL = f.FundingLockTTL
	}
}

func (r *RelayersConfig) ValidateConfig() (err error) {
	if r.MinCount != nil && *r.MinCount < 1 {
		err = errors.Join(err, config.ErrInvalid{Name: "Relayers.MinCount", Value: *r.MinCount, Msg: "must be at least 1"})
	}
	if r.MinCount != nil && r.MaxCount != nil && *r.MaxCount < *r.MinCount {
		err = errors.Join(err, config.ErrInvalid{Name: "Relayers.MaxCount", Value: *r.MaxCount, Msg: "must not be below MinCount"})
	}
	if r.InactiveThreshold != nil && *r.InactiveThreshold < 0 {
		err = errors.Join(err, config.ErrInvalid{Name: "Relayers.InactiveThreshold", Value: *r.InactiveThreshold, Msg: "must not be negative"})
	}
	return
}

type NodeConfig struct {
	Name *string
	URL  *config.URL
}

func (n *NodeConfig) ValidateConfig() (err error) {
	if n.Name == nil {
		err = errors.Join(err, config.ErrMissing{Name: "Name", Msg: "required for all nodes"})
	} else if *n.Name == "" {
		err = errors.Join(err, config.ErrEmpty{Name: "Name", Msg: "required for all nodes"})
	}
	if n.URL == nil {
		err = errors.Join(err, config.ErrMissing{Name: "URL", Msg: "required for all nodes"})
	}
	return
}

type NodeConfigs []*NodeConfig

func (ns *NodeConfigs) SetFrom(fs *NodeConfigs) {
	for _, f := range *fs {
		if f.Name == nil {
			*ns = append(*ns, f)
		} else if i := slices.IndexFunc(*ns, func(n *NodeConfig) bool {
			return n.Name != nil && *n.Name == *f.Name
		}); i == -1 {
			*ns = append(*ns, f)
		} else {
			setFromNode((*ns)[i], f)
		}
	}
}

func (ns NodeConfigs) SelectRandom() (*NodeConfig, error) {
	if len(ns) == 0 {
		return nil, errors.New("no nodes available")
	}
	return ns[rand.Intn(len(ns))], nil
}

func setFromNode(n, f *NodeConfig) {
	if f.Name != nil {
		n.Name = f.Name
	}
	if f.URL != nil {
		n.URL = f.URL
	}
}

type TOMLConfig struct {
	ChainID *string
	// Do not access directly, use [IsEnabled]
	Enabled *bool
	ChainConfig
	Relayers RelayersConfig
	Nodes    NodeConfigs
}

func (c *TOMLConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c *TOMLConfig) SetFrom(f *TOMLConfig) {
	if f.ChainID != nil {
		c.ChainID = f.ChainID
	}
	if f.Enabled != nil {
		c.Enabled = f.Enabled
	}
	setFromChain(&c.ChainConfig, &f.ChainConfig)
	setFromRelayers(&c.Relayers, &f.Relayers)
	c.Nodes.SetFrom(&f.Nodes)
}

func (c *TOMLConfig) SetDefaults() {
	c.ChainConfig.SetDefaults()
	c.Relayers.SetDefaults()
}

func (c *TOMLConfig) ValidateConfig() error {
	var err error
	if c.ChainID == nil {
		err = errors.Join(err, config.ErrMissing{Name: "ChainID", Msg: "required for all chains"})
	} else if *c.ChainID == "" {
		err = errors.Join(err, config.ErrEmpty{Name: "ChainID", Msg: "required for all chains"})
	} else if _, perr := relayer.ParseChainID(*c.ChainID); perr != nil {
		err = errors.Join(err, config.ErrInvalid{Name: "ChainID", Value: *c.ChainID, Msg: perr.Error()})
	}

	if len(c.Nodes) == 0 {
		err = errors.Join(err, config.ErrMissing{Name: "Nodes", Msg: "must have at least one node"})
	} else {
		for _, node := range c.Nodes {
			err = errors.Join(err, node.ValidateConfig())
		}
	}

	if len(c.EntryPoints) == 0 {
		err = errors.Join(err, config.ErrMissing{Name: "EntryPoints", Msg: "must have at least one entry point"})
	}
	for i, ep := range c.EntryPoints {
		if !common.IsHexAddress(ep) {
			err = errors.Join(err, config.ErrInvalid{Name: fmt.Sprintf("EntryPoints.%d", i), Value: ep, Msg: "not a hex address"})
		}
	}
	if c.BumpPercent != nil && *c.BumpPercent < 0 {
		err = errors.Join(err, config.ErrInvalid{Name: "BumpPercent", Value: *c.BumpPercent, Msg: "must not be negative"})
	}

	return errors.Join(err, c.Relayers.ValidateConfig())
}

func (c *TOMLConfig) TOMLString() (string, error) {
	b, err := toml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ID parses ChainID. Only valid after ValidateConfig.
func (c *TOMLConfig) ID() uint64 {
	id, _ := relayer.ParseChainID(*c.ChainID)
	return id
}

func (c *TOMLConfig) ListNodes() NodeConfigs {
	return c.Nodes
}

func (c *TOMLConfig) EntryPointAddresses() []common.Address {
	addrs := make([]common.Address, 0, len(c.EntryPoints))
	for _, ep := range c.EntryPoints {
		addrs = append(addrs, common.HexToAddress(ep))
	}
	return addrs
}

func (c *TOMLConfig) BalancePollPeriod() time.Duration {
	return c.ChainConfig.BalancePollPeriod.Duration()
}

func (c *TOMLConfig) ReceiptTimeout() time.Duration {
	return c.ChainConfig.ReceiptTimeout.Duration()
}

func (c *TOMLConfig) ReceiptPollInterval() time.Duration {
	return c.ChainConfig.ReceiptPollInterval.Duration()
}

func (c *TOMLConfig) ResubmitPollPeriod() time.Duration {
	return c.ChainConfig.ResubmitPollPeriod.Duration()
}

func (c *TOMLConfig) RequeueDelay() time.Duration {
	return c.ChainConfig.RequeueDelay.Duration()
}

type TOMLConfigs []*TOMLConfig

func (cs TOMLConfigs) ValidateConfig() (err error) {
	err = cs.validateKeys()
	for _, c := range cs {
		err = errors.Join(err, c.ValidateConfig())
	}
	return
}

func (cs TOMLConfigs) validateKeys() error {
	var err error
	// Unique chain IDs
	chainIDs := config.UniqueStrings{}
	for i, c := range cs {
		if chainIDs.IsDupe(c.ChainID) {
			err = errors.Join(err, config.NewErrDuplicate(fmt.Sprintf("%d.ChainID", i), *c.ChainID))
		}
	}

	// Unique node names
	names := config.UniqueStrings{}
	for i, c := range cs {
		for j, n := range c.Nodes {
			if names.IsDupe(n.Name) {
				err = errors.Join(err, config.NewErrDuplicate(fmt.Sprintf("%d.Nodes.%d.Name", i, j), *n.Name))
			}
		}
	}

	// Unique URLs
	urls := config.UniqueStrings{}
	for i, c := range cs {
		for j, n := range c.Nodes {
			if n.URL == nil {
				continue
			}
			u := (*url.URL)(n.URL)
			if urls.IsDupeFmt(u) {
				err = errors.Join(err, config.NewErrDuplicate(fmt.Sprintf("%d.Nodes.%d.URL", i, j), u.String()))
			}
		}
	}
	return err
}

func (cs *TOMLConfigs) SetFrom(fs *TOMLConfigs) error {
	if err1 := fs.validateKeys(); err1 != nil {
		return err1
	}
	for _, f := range *fs {
		if f.ChainID == nil {
			*cs = append(*cs, f)
		} else if i := slices.IndexFunc(*cs, func(c *TOMLConfig) bool {
			return c.ChainID != nil && *c.ChainID == *f.ChainID
		}); i == -1 {
			*cs = append(*cs, f)
		} else {
			(*cs)[i].SetFrom(f)
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
