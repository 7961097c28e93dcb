// ABOUTME: Prediction-market domain model: markets, outcomes, prices, and token ids.
// ABOUTME: Outcome prices are decimals in [0,1] aligned positionally with their outcome labels.
package polymarket

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Market is one tradable prediction market. Outcomes, OutcomePrices, and
// ClobTokenIDs are positionally aligned: index i of each refers to the same
// outcome.
type Market struct {
	ID            string
	Question      string
	Description   string
	Slug          string
	Outcomes      []string
	OutcomePrices []decimal.Decimal
	ClobTokenIDs  []string
	Volume        decimal.Decimal
	Liquidity     decimal.Decimal
	EndDate       time.Time
	Active        bool
	Closed        bool
}

// Validate checks the positional alignment the rest of the pipeline relies
// on. A market whose outcome labels and prices disagree in length cannot be
// analyzed or traded.
func (m *Market) Validate() error {
	if m.Question == "" {
		return fmt.Errorf("market %s has no question", m.ID)
	}
	if len(m.Outcomes) == 0 {
		return fmt.Errorf("market %s has no outcomes", m.ID)
	}
	if len(m.Outcomes) != len(m.OutcomePrices) {
		return fmt.Errorf("market %s has %d outcomes but %d prices",
			m.ID, len(m.Outcomes), len(m.OutcomePrices))
	}
	if len(m.ClobTokenIDs) > 0 && len(m.ClobTokenIDs) != len(m.Outcomes) {
		return fmt.Errorf("market %s has %d outcomes but %d token ids",
			m.ID, len(m.Outcomes), len(m.ClobTokenIDs))
	}
	return nil
}

// PriceFor returns the current price for the named outcome.
func (m *Market) PriceFor(outcome string) (decimal.Decimal, bool) {
	for i, o := range m.Outcomes {
		if o == outcome && i < len(m.OutcomePrices) {
			return m.OutcomePrices[i], true
		}
	}
	return decimal.Zero, false
}

// TokenIDFor returns the CLOB token id for the named outcome. Orders are
// placed against token ids, not outcome labels.
func (m *Market) TokenIDFor(outcome string) (string, bool) {
	for i, o := range m.Outcomes {
		if o == outcome && i < len(m.ClobTokenIDs) {
			return m.ClobTokenIDs[i], true
		}
	}
	return "", false
}
