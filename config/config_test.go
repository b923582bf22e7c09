package config

import (
	_ "embed"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-common/pkg/config"
)

//go:embed testdata/config.toml
var fullTOML string

func TestDecode(t *testing.T) {
	c, err := Decode(strings.NewReader(fullTOML))
	require.NoError(t, err)

	assert.Equal(t, "postgres", *c.Database.Driver)
	assert.Equal(t, "redis://localhost:6379/0", c.Redis.URL.URL().String())
	assert.Equal(t, 5*time.Second, c.Redis.LockWait.Duration())
	assert.Equal(t, "relayers", *c.Redis.ConsumerGroup)
	assert.Equal(t, DEFAULT_NOTIFY_BUFFER_SIZE, *c.Notify.BufferSize)
	assert.Equal(t, "warn", *c.Notify.SlackMinLevel)

	require.Len(t, c.Chains, 2)
	polygon := c.Chains[0]
	assert.Equal(t, uint64(137), polygon.ID())
	assert.True(t, polygon.IsEnabled())
	assert.Equal(t, 20, *polygon.BumpPercent)
	assert.Equal(t, 45*time.Second, polygon.ResubmitPollPeriod())
	assert.Equal(t, defaultConfigSet.ReceiptTimeout, polygon.ReceiptTimeout())
	assert.Equal(t, []string{"replacement transaction underpriced", "fee too low"}, polygon.ErrorTaxonomy["Underpriced"])
	assert.Equal(t, 3, *polygon.Relayers.MinCount)
	assert.Equal(t, 6, *polygon.Relayers.MaxCount)
	assert.Equal(t, defaultRelayersSet.InactiveThreshold, *polygon.Relayers.InactiveThreshold)
	assert.Equal(t, big.NewInt(50_000_000*params.GWei).String(), polygon.Relayers.FundingBalanceThreshold.String())
	assert.Equal(t, big.NewInt(params.Ether).String(), polygon.Relayers.FundingAmount.String())
	require.Len(t, polygon.EntryPointAddresses(), 1)
	assert.Equal(t, "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789", polygon.EntryPointAddresses()[0].Hex())

	mainnet := c.Chains[1]
	assert.Equal(t, uint64(1), mainnet.ID())
	assert.False(t, mainnet.IsEnabled())
	assert.Len(t, c.EnabledChains(), 1)
}

func TestDecode_UnknownField(t *testing.T) {
	_, err := Decode(strings.NewReader(fullTOML + "\nBogus = 1\n"))
	require.Error(t, err)
}

func TestDecode_Defaults(t *testing.T) {
	c, err := Decode(strings.NewReader(`
[[Chains]]
ChainID = '31337'
EntryPoints = ['0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789']

[[Chains.Nodes]]
Name = 'local'
URL = 'http://localhost:8545'
`))
	require.NoError(t, err)
	assert.Equal(t, DEFAULT_DATABASE_DRIVER, *c.Database.Driver)
	assert.Nil(t, c.Redis.URL)

	ch := c.Chains[0]
	assert.Equal(t, defaultConfigSet.BalancePollPeriod, ch.BalancePollPeriod())
	assert.Equal(t, defaultConfigSet.RequeueDelay, ch.RequeueDelay())
	assert.True(t, *ch.EIP1559)
	assert.Equal(t, defaultConfigSet.FrontRunLookbackBlocks, *ch.FrontRunLookbackBlocks)
	assert.Zero(t, defaultRelayersSet.FundingAmount.Cmp(ch.Relayers.FundingAmount.Int()))
	assert.Equal(t, defaultRelayersSet.FundingLockTTL, ch.Relayers.FundingLockTTL.Duration())
}

func TestTOMLConfig_ValidateConfig(t *testing.T) {
	c := &TOMLConfig{
		ChainID:     ptr("not-a-number"),
		ChainConfig: ChainConfig{EntryPoints: []string{"0xnope"}},
		Relayers:    RelayersConfig{MinCount: ptr(4), MaxCount: ptr(2)},
		Nodes:       NodeConfigs{{Name: ptr("")}},
	}
	c.SetDefaults()
	err := c.ValidateConfig()
	require.Error(t, err)
	for _, want := range []string{"ChainID", "EntryPoints.0", "Name", "URL", "Relayers.MaxCount"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestTOMLConfigs_DuplicateKeys(t *testing.T) {
	node := func(name, u string) *NodeConfig {
		return &NodeConfig{Name: ptr(name), URL: config.MustParseURL(u)}
	}
	cs := TOMLConfigs{
		{ChainID: ptr("1"), Nodes: NodeConfigs{node("a", "http://a")}},
		{ChainID: ptr("1"), Nodes: NodeConfigs{node("a", "http://a")}},
	}
	err := cs.validateKeys()
	require.Error(t, err)
	assert.ErrorContains(t, err, "1.ChainID")
	assert.ErrorContains(t, err, "1.Nodes.0.Name")
	assert.ErrorContains(t, err, "1.Nodes.0.URL")
}

func TestTOMLConfigs_SetFrom(t *testing.T) {
	cs := TOMLConfigs{{ChainID: ptr("1"), ChainConfig: ChainConfig{BumpPercent: ptr(10)}}}
	require.NoError(t, cs.SetFrom(&TOMLConfigs{
		{ChainID: ptr("1"), ChainConfig: ChainConfig{BumpPercent: ptr(30)}},
		{ChainID: ptr("2")},
	}))
	require.Len(t, cs, 2)
	assert.Equal(t, 30, *cs[0].BumpPercent)
}

func TestTOMLConfig_TOMLString(t *testing.T) {
	c, err := Decode(strings.NewReader(fullTOML))
	require.NoError(t, err)
	s, err := c.Chains[0].TOMLString()
	require.NoError(t, err)
	assert.Contains(t, s, "ChainID = '137'")
	assert.Contains(t, s, "FundingAmount = '1000000000000000000'")
}

func TestWei(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want *big.Int
	}{
		{"0", big.NewInt(0)},
		{"21000", big.NewInt(21000)},
		{"5 wei", big.NewInt(5)},
		{"30 gwei", big.NewInt(30 * params.GWei)},
		{"2ether", big.NewInt(2 * params.Ether)},
	} {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want.String(), MustParseWei(tc.in).String())
		})
	}

	var w Wei
	assert.Error(t, w.UnmarshalText([]byte("1.5 ether")))
	assert.Error(t, w.UnmarshalText([]byte("-1")))
	assert.Error(t, w.UnmarshalText([]byte("lots")))
}
