package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"capmarket/native/market"
	"capmarket/storage"
)

const (
	marketKey      = "market:record"
	positionPrefix = "market:position:"
)

// MarketStore persists the market aggregate and account positions through the
// key-value store. Reads hand back freshly decoded records so no caller ever
// holds a shared mutable copy of the stored state.
type MarketStore struct {
	db storage.Database
}

func NewMarketStore(db storage.Database) *MarketStore {
	return &MarketStore{db: db}
}

type marketRecord struct {
	TotalSupply           *big.Int `json:"totalSupply"`
	TotalCollateralTokens *big.Int `json:"totalCollateralTokens"`
	TotalBorrows          *big.Int `json:"totalBorrows"`
	TotalReserves         *big.Int `json:"totalReserves"`
	InternalCash          *big.Int `json:"internalCash"`
	CollateralCap         *big.Int `json:"collateralCap"`
	FlashFeeBips          uint64   `json:"flashFeeBips"`
	ReserveFactorMantissa *big.Int `json:"reserveFactorMantissa"`
}

type positionRecord struct {
	Address          common.Address `json:"address"`
	Tokens           *big.Int       `json:"tokens"`
	CollateralTokens *big.Int       `json:"collateralTokens"`
}

// GetMarket returns the stored market record, or nil when none exists yet.
func (s *MarketStore) GetMarket() (*market.Market, error) {
	raw, err := s.db.Get([]byte(marketKey))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := &marketRecord{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("state: decode market: %w", err)
	}
	m := &market.Market{
		TotalSupply:           rec.TotalSupply,
		TotalCollateralTokens: rec.TotalCollateralTokens,
		TotalBorrows:          rec.TotalBorrows,
		TotalReserves:         rec.TotalReserves,
		InternalCash:          rec.InternalCash,
		CollateralCap:         rec.CollateralCap,
		FlashFeeBips:          rec.FlashFeeBips,
		ReserveFactorMantissa: rec.ReserveFactorMantissa,
	}
	m.EnsureDefaults()
	return m, nil
}

func (s *MarketStore) PutMarket(m *market.Market) error {
	if m == nil {
		return fmt.Errorf("state: nil market record")
	}
	m.EnsureDefaults()
	raw, err := json.Marshal(&marketRecord{
		TotalSupply:           m.TotalSupply,
		TotalCollateralTokens: m.TotalCollateralTokens,
		TotalBorrows:          m.TotalBorrows,
		TotalReserves:         m.TotalReserves,
		InternalCash:          m.InternalCash,
		CollateralCap:         m.CollateralCap,
		FlashFeeBips:          m.FlashFeeBips,
		ReserveFactorMantissa: m.ReserveFactorMantissa,
	})
	if err != nil {
		return fmt.Errorf("state: encode market: %w", err)
	}
	return s.db.Put([]byte(marketKey), raw)
}

// InitMarket writes the record only when no market exists yet, so restarting
// a daemon never clobbers live accounting with configured defaults.
func (s *MarketStore) InitMarket(m *market.Market) error {
	exists, err := s.db.Has([]byte(marketKey))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.PutMarket(m)
}

func positionKey(addr common.Address) []byte {
	return []byte(positionPrefix + addr.Hex())
}

// GetPosition returns the stored position for the address, or nil when the
// account has never interacted with the market.
func (s *MarketStore) GetPosition(addr common.Address) (*market.Position, error) {
	raw, err := s.db.Get(positionKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := &positionRecord{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("state: decode position: %w", err)
	}
	pos := &market.Position{
		Address:          rec.Address,
		Tokens:           rec.Tokens,
		CollateralTokens: rec.CollateralTokens,
	}
	pos.EnsureDefaults()
	return pos, nil
}

func (s *MarketStore) PutPosition(pos *market.Position) error {
	if pos == nil {
		return fmt.Errorf("state: nil position record")
	}
	pos.EnsureDefaults()
	raw, err := json.Marshal(&positionRecord{
		Address:          pos.Address,
		Tokens:           pos.Tokens,
		CollateralTokens: pos.CollateralTokens,
	})
	if err != nil {
		return fmt.Errorf("state: encode position: %w", err)
	}
	return s.db.Put(positionKey(pos.Address), raw)
}
