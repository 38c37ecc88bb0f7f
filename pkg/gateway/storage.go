package gateway

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/hydration-network/hydrax/pkg/chain"
)

// storageClient answers chain.Storage queries through the gateway's storage
// endpoints, pinned to one block hash. The gateway pages large enumerations
// internally and returns complete result sets.
type storageClient struct {
	gateway *Gateway
	at      string
}

type storageRequest struct {
	At string `json:"at"`
}

func (s *storageClient) HasPallet(ctx context.Context, pallet string) (bool, error) {
	var resp struct {
		Present bool `json:"present"`
	}
	url := fmt.Sprintf("%s/storage/pallet/%s", s.gateway.baseURL, pallet)
	if err := s.gateway.postJSON(ctx, url, storageRequest{At: s.at}, &resp); err != nil {
		return false, err
	}
	return resp.Present, nil
}

type wireOmnipoolAsset struct {
	AssetID        uint32 `json:"assetId"`
	HubReserve     string `json:"hubReserve"`
	Shares         string `json:"shares"`
	ProtocolShares string `json:"protocolShares"`
	Cap            string `json:"cap"`
	Tradable       uint8  `json:"tradable"`
}

func (w wireOmnipoolAsset) decode() (chain.OmnipoolAssetEntry, error) {
	entry := chain.OmnipoolAssetEntry{AssetID: w.AssetID, Tradable: w.Tradable}
	var err error
	if entry.HubReserve, err = uint256.FromDecimal(w.HubReserve); err != nil {
		return entry, fmt.Errorf("asset %d hubReserve: %w", w.AssetID, err)
	}
	if entry.Shares, err = uint256.FromDecimal(w.Shares); err != nil {
		return entry, fmt.Errorf("asset %d shares: %w", w.AssetID, err)
	}
	if entry.ProtocolShares, err = uint256.FromDecimal(w.ProtocolShares); err != nil {
		return entry, fmt.Errorf("asset %d protocolShares: %w", w.AssetID, err)
	}
	if entry.Cap, err = uint256.FromDecimal(w.Cap); err != nil {
		return entry, fmt.Errorf("asset %d cap: %w", w.AssetID, err)
	}
	return entry, nil
}

func (s *storageClient) OmnipoolAssets(ctx context.Context) ([]chain.OmnipoolAssetEntry, error) {
	var resp struct {
		Assets []wireOmnipoolAsset `json:"assets"`
	}
	url := s.gateway.baseURL + "/storage/omnipool/assets"
	if err := s.gateway.postJSON(ctx, url, storageRequest{At: s.at}, &resp); err != nil {
		return nil, err
	}
	out := make([]chain.OmnipoolAssetEntry, 0, len(resp.Assets))
	for _, w := range resp.Assets {
		entry, err := w.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *storageClient) OmnipoolAssetStates(ctx context.Context, assetIDs []uint32) (map[uint32]chain.OmnipoolAssetEntry, error) {
	var resp struct {
		Assets []wireOmnipoolAsset `json:"assets"`
	}
	url := s.gateway.baseURL + "/storage/omnipool/asset-states"
	body := struct {
		storageRequest
		AssetIDs []uint32 `json:"assetIds"`
	}{storageRequest{At: s.at}, assetIDs}
	if err := s.gateway.postJSON(ctx, url, body, &resp); err != nil {
		return nil, err
	}
	out := make(map[uint32]chain.OmnipoolAssetEntry, len(resp.Assets))
	for _, w := range resp.Assets {
		entry, err := w.decode()
		if err != nil {
			return nil, err
		}
		out[entry.AssetID] = entry
	}
	return out, nil
}

func (s *storageClient) XYKPools(ctx context.Context) ([]chain.XYKPoolEntry, error) {
	var resp struct {
		Pools []struct {
			Pool   string `json:"pool"`
			AssetA uint32 `json:"assetA"`
			AssetB uint32 `json:"assetB"`
		} `json:"pools"`
	}
	url := s.gateway.baseURL + "/storage/xyk/pools"
	if err := s.gateway.postJSON(ctx, url, storageRequest{At: s.at}, &resp); err != nil {
		return nil, err
	}
	out := make([]chain.XYKPoolEntry, 0, len(resp.Pools))
	for _, w := range resp.Pools {
		acct, err := chain.AccountIDFromHex(w.Pool)
		if err != nil {
			return nil, err
		}
		out = append(out, chain.XYKPoolEntry{PoolAccount: acct, AssetA: w.AssetA, AssetB: w.AssetB})
	}
	return out, nil
}

func (s *storageClient) StableswapPools(ctx context.Context) ([]chain.StableswapPoolEntry, error) {
	var resp struct {
		Pools []struct {
			PoolID               uint32   `json:"poolId"`
			Assets               []uint32 `json:"assets"`
			InitialAmplification uint64   `json:"initialAmplification"`
			FinalAmplification   uint64   `json:"finalAmplification"`
			InitialBlock         uint32   `json:"initialBlock"`
			FinalBlock           uint32   `json:"finalBlock"`
			Fee                  uint32   `json:"fee"`
		} `json:"pools"`
	}
	url := s.gateway.baseURL + "/storage/stableswap/pools"
	if err := s.gateway.postJSON(ctx, url, storageRequest{At: s.at}, &resp); err != nil {
		return nil, err
	}
	out := make([]chain.StableswapPoolEntry, 0, len(resp.Pools))
	for _, w := range resp.Pools {
		out = append(out, chain.StableswapPoolEntry{
			PoolID:               w.PoolID,
			Assets:               w.Assets,
			InitialAmplification: w.InitialAmplification,
			FinalAmplification:   w.FinalAmplification,
			InitialBlock:         w.InitialBlock,
			FinalBlock:           w.FinalBlock,
			Fee:                  w.Fee,
		})
	}
	return out, nil
}

func (s *storageClient) RegistryAssets(ctx context.Context) ([]chain.RegistryAsset, error) {
	var resp struct {
		Assets []struct {
			AssetID  uint32 `json:"assetId"`
			Symbol   []byte `json:"symbol"`
			Name     []byte `json:"name"`
			Decimals *uint8 `json:"decimals"`
		} `json:"assets"`
	}
	url := s.gateway.baseURL + "/storage/asset-registry/assets"
	if err := s.gateway.postJSON(ctx, url, storageRequest{At: s.at}, &resp); err != nil {
		return nil, err
	}
	out := make([]chain.RegistryAsset, 0, len(resp.Assets))
	for _, w := range resp.Assets {
		out = append(out, chain.RegistryAsset{
			AssetID:  w.AssetID,
			Symbol:   w.Symbol,
			Name:     w.Name,
			Decimals: w.Decimals,
		})
	}
	return out, nil
}

func (s *storageClient) TokenAccounts(ctx context.Context, keys []chain.TokenAccountKey) (map[chain.TokenAccountKey]*uint256.Int, error) {
	type wireKey struct {
		Account string `json:"account"`
		AssetID uint32 `json:"assetId"`
	}
	body := struct {
		storageRequest
		Keys []wireKey `json:"keys"`
	}{storageRequest: storageRequest{At: s.at}}
	for _, key := range keys {
		body.Keys = append(body.Keys, wireKey{Account: key.Account.Hex(), AssetID: key.AssetID})
	}

	var resp struct {
		Accounts []struct {
			Account string `json:"account"`
			AssetID uint32 `json:"assetId"`
			Free    string `json:"free"`
		} `json:"accounts"`
	}
	url := s.gateway.baseURL + "/storage/tokens/accounts"
	if err := s.gateway.postJSON(ctx, url, body, &resp); err != nil {
		return nil, err
	}

	out := make(map[chain.TokenAccountKey]*uint256.Int, len(resp.Accounts))
	for _, w := range resp.Accounts {
		acct, err := chain.AccountIDFromHex(w.Account)
		if err != nil {
			return nil, err
		}
		free, err := uint256.FromDecimal(w.Free)
		if err != nil {
			return nil, fmt.Errorf("account %s asset %d free: %w", w.Account, w.AssetID, err)
		}
		out[chain.TokenAccountKey{Account: acct, AssetID: w.AssetID}] = free
	}
	return out, nil
}
