package pricing

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/mintmatch/mintmatch/internal/domain"
	"github.com/mintmatch/mintmatch/internal/fixedmath"
)

// Counterparty returns the collateral amount the opposite side must deposit
// so both sides receive tokens of equal value at the given prices: for a YES
// first side it is amount*yesPrice/noPrice, for NO it is amount*noPrice/yesPrice.
// It is stateless and deterministic; callers can use it to quote without
// touching ledger state.
func Counterparty(amount *uint256.Int, firstSide domain.Side, prices domain.PricePair) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, domain.ErrZeroAmount
	}
	if err := checkPriceBounds(prices.Yes); err != nil {
		return nil, err
	}
	if err := checkPriceBounds(prices.No); err != nil {
		return nil, err
	}

	num, den := prices.Yes, prices.No
	if firstSide == domain.SideNo {
		num, den = prices.No, prices.Yes
	}

	out, err := fixedmath.MulDiv(amount, num, den)
	if err != nil {
		return nil, fmt.Errorf("pricing: counterparty amount: %w", err)
	}
	return out, nil
}

// checkPriceBounds rejects prices outside the open interval (0, 1 WAD). A
// price must represent a strict probability.
func checkPriceBounds(p *uint256.Int) error {
	if p == nil || p.IsZero() || p.Cmp(fixedmath.Wad()) >= 0 {
		return domain.ErrPriceOutOfBounds
	}
	return nil
}
