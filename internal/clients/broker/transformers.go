package broker

import "github.com/investbot/balancer/internal/domain"

func transformPortfolio(s PortfolioSummary) *domain.BrokerPortfolio {
	positions := make([]domain.BrokerPosition, len(s.Positions))
	for i, p := range s.Positions {
		positions[i] = domain.BrokerPosition{
			Symbol:         p.Symbol,
			FIGI:           p.FIGI,
			Name:           p.Name,
			InstrumentType: p.InstrumentType,
			Quantity:       p.Quantity,
			LotSize:        p.LotSize,
			CurrentPrice:   p.CurrentPrice,
			AvgPrice:       p.AvgPrice,
			UnrealizedPnL:  p.UnrealizedPnL,
			Currency:       p.Currency,
		}
	}
	return &domain.BrokerPortfolio{
		TotalValue: s.TotalValue,
		Currency:   s.Currency,
		Positions:  positions,
	}
}

func transformSecurities(found []SecurityInfo) []domain.BrokerSecurityInfo {
	out := make([]domain.BrokerSecurityInfo, len(found))
	for i, s := range found {
		out[i] = domain.BrokerSecurityInfo{
			Symbol:         s.Symbol,
			FIGI:           s.FIGI,
			Name:           s.Name,
			InstrumentType: s.InstrumentType,
			Currency:       s.Currency,
			LotSize:        s.LotSize,
		}
	}
	return out
}
