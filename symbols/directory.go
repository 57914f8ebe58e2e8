package symbols

import (
	"sync"

	"github.com/quietridge/copilot-core/domain"
)

// Meta is the Directory's per-ticker record.
type Meta struct {
	External string
	Name     string
	Class    domain.AssetClass
}

// seedEntry is one row of the literal seed table below. Iterating it in
// order and overwriting on duplicate canonical keys is deliberate: the
// source this spec was distilled from carries two entries apiece for IAG
// and NESN with the later one winning, and this table reproduces that
// shape rather than silently picking a different resolution strategy
// (see DESIGN.md Open Question 1).
type seedEntry struct {
	canonical string
	meta      Meta
}

// SeedDirectory is the static metadata table referenced by spec.md §9 but
// not reproduced there. It covers a representative slice of each asset
// class named in the data model.
var SeedDirectory = []seedEntry{
	{"AAPL", Meta{"AAPL", "Apple Inc.", domain.AssetStock}},
	{"MSFT", Meta{"MSFT", "Microsoft Corporation", domain.AssetStock}},
	{"GOOGL", Meta{"GOOGL", "Alphabet Inc.", domain.AssetStock}},
	{"AMZN", Meta{"AMZN", "Amazon.com, Inc.", domain.AssetStock}},
	{"TSLA", Meta{"TSLA", "Tesla, Inc.", domain.AssetStock}},
	{"BRK B", Meta{"BRK-B", "Berkshire Hathaway Inc.", domain.AssetStock}},
	{"NVDA", Meta{"NVDA", "NVIDIA Corporation", domain.AssetStock}},
	{"JPM", Meta{"JPM", "JPMorgan Chase & Co.", domain.AssetStock}},
	// IAG carries two seed entries; the second (London-listed) wins.
	{"IAG", Meta{"IAG", "Iamgold Corporation", domain.AssetStock}},
	{"IAG", Meta{"IAG.L", "International Consolidated Airlines Group", domain.AssetStock}},
	{"NESN", Meta{"NESN", "Nestle India Limited", domain.AssetStock}},
	{"NESN", Meta{"NESN.SW", "Nestle S.A.", domain.AssetStock}},
	{"SPY", Meta{"SPY", "SPDR S&P 500 ETF Trust", domain.AssetETF}},
	{"QQQ", Meta{"QQQ", "Invesco QQQ Trust", domain.AssetETF}},
	{"VTI", Meta{"VTI", "Vanguard Total Stock Market ETF", domain.AssetETF}},
	{"AGG", Meta{"AGG", "iShares Core U.S. Aggregate Bond ETF", domain.AssetBond}},
	{"BTC-USD", Meta{"BTC-USD", "Bitcoin", domain.AssetCrypto}},
	{"ETH-USD", Meta{"ETH-USD", "Ethereum", domain.AssetCrypto}},
	{"SOL-USD", Meta{"SOL-USD", "Solana", domain.AssetCrypto}},
	{"VFIAX", Meta{"VFIAX", "Vanguard 500 Index Fund Admiral Shares", domain.AssetMutualFund}},
	{"EURUSD=X", Meta{"EURUSD=X", "Euro / US Dollar", domain.AssetCurrency}},
	{"GBPUSD=X", Meta{"GBPUSD=X", "British Pound / US Dollar", domain.AssetCurrency}},
}

// Directory is the process-lifetime-immutable canonical→external mapping.
type Directory struct {
	mu      sync.RWMutex
	byTicker map[string]Meta
}

// NewDirectory builds a Directory from SeedDirectory, later entries for a
// duplicate canonical ticker overwriting earlier ones.
func NewDirectory() *Directory {
	d := &Directory{byTicker: make(map[string]Meta, len(SeedDirectory))}
	for _, e := range SeedDirectory {
		d.byTicker[e.canonical] = e.meta
	}
	return d
}

// Lookup returns the Meta for a canonical ticker, if known.
func (d *Directory) Lookup(canonical string) (Meta, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.byTicker[canonical]
	return m, ok
}
