package model

import "github.com/shopspring/decimal"

// maxPressure caps the ratio when one side of the book is empty.
const maxPressure = 10.0

// Level is a single price/quantity entry of an order book.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Notional returns price*quantity.
func (l Level) Notional() decimal.Decimal {
	return l.Price.Mul(l.Quantity)
}

// OrderBookSnapshot is a point-in-time depth snapshot.
type OrderBookSnapshot struct {
	Symbol string  `json:"symbol"`
	Bids   []Level `json:"bids"`
	Asks   []Level `json:"asks"`
}

// BidValue is the aggregate quote value resting on the bid side.
func (o OrderBookSnapshot) BidValue() decimal.Decimal { return sumNotional(o.Bids) }

// AskValue is the aggregate quote value resting on the ask side.
func (o OrderBookSnapshot) AskValue() decimal.Decimal { return sumNotional(o.Asks) }

// PressureRatio returns bid value / ask value. An empty book is balanced (1);
// a book with only one populated side saturates at 10 or 0.
func (o OrderBookSnapshot) PressureRatio() float64 {
	bid, ask := o.BidValue(), o.AskValue()
	switch {
	case bid.IsZero() && ask.IsZero():
		return 1
	case ask.IsZero():
		return maxPressure
	}
	r, _ := bid.Div(ask).Float64()
	if r > maxPressure {
		return maxPressure
	}
	return r
}

func sumNotional(levels []Level) decimal.Decimal {
	total := decimal.Zero
	for _, l := range levels {
		if l.Price.IsNegative() || l.Quantity.IsNegative() {
			continue
		}
		total = total.Add(l.Notional())
	}
	return total
}
