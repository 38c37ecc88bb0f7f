// Package gateway implements chain.Source against the archive gateway's
// HTTP API: ranged block fetches while catching up, polling at the head once
// live. The gateway serves blocks with pre-decoded events and calls and
// answers the storage queries behind chain.Storage.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/hydration-network/hydrax/pkg/chain"
	"github.com/hydration-network/hydrax/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Gateway struct {
	logger       *zap.Logger
	baseURL      string
	client       *http.Client
	batchLimit   int
	pollInterval time.Duration
}

func New(logger *zap.Logger) *Gateway {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 5
	rc.RetryWaitMin = time.Second
	rc.RetryWaitMax = 30 * time.Second
	rc.Logger = nil

	return &Gateway{
		logger:       logger.Named("gateway"),
		baseURL:      utils.Env("GATEWAY_URL", "http://localhost:8100"),
		client:       rc.StandardClient(),
		batchLimit:   utils.EnvInt("GATEWAY_BATCH_LIMIT", 100),
		pollInterval: time.Duration(utils.EnvInt("GATEWAY_POLL_INTERVAL_SECONDS", 6)) * time.Second,
	}
}

type wireEvent struct {
	Pallet string              `json:"pallet"`
	Name   string              `json:"name"`
	Args   jsoniter.RawMessage `json:"args"`
}

type wireCall struct {
	Pallet  string              `json:"pallet"`
	Name    string              `json:"name"`
	Args    jsoniter.RawMessage `json:"args"`
	Success bool                `json:"success"`
}

type wireBlock struct {
	Height      uint32      `json:"height"`
	Hash        string      `json:"hash"`
	ParentHash  string      `json:"parentHash"`
	Timestamp   int64       `json:"timestamp"`
	SpecVersion uint32      `json:"specVersion"`
	Events      []wireEvent `json:"events"`
	Calls       []wireCall  `json:"calls"`
}

type wireHead struct {
	Height uint32 `json:"height"`
	Hash   string `json:"hash"`
}

type blocksResponse struct {
	Blocks        []wireBlock `json:"blocks"`
	FinalizedHead wireHead    `json:"finalizedHead"`
}

// Run streams batches starting at fromBlock until toBlock (when non-zero)
// has been delivered or the context ends. At the head, empty responses turn
// into polling at the configured interval.
func (g *Gateway) Run(ctx context.Context, fromBlock, toBlock uint32, handler chain.BatchHandler) error {
	next := fromBlock
	for {
		if toBlock != 0 && next > toBlock {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		limit := g.batchLimit
		if toBlock != 0 && int(toBlock-next)+1 < limit {
			limit = int(toBlock-next) + 1
		}

		var resp blocksResponse
		url := fmt.Sprintf("%s/blocks?from=%d&limit=%d", g.baseURL, next, limit)
		if err := g.getJSON(ctx, url, &resp); err != nil {
			return fmt.Errorf("fetch blocks from %d: %w", next, err)
		}

		if len(resp.Blocks) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.pollInterval):
			}
			continue
		}

		batch := &chain.Batch{
			FinalizedHead: chain.Head{Height: resp.FinalizedHead.Height, Hash: resp.FinalizedHead.Hash},
		}
		for i := range resp.Blocks {
			wb := &resp.Blocks[i]
			block := &chain.Block{
				Height:      wb.Height,
				Hash:        wb.Hash,
				ParentHash:  wb.ParentHash,
				Timestamp:   time.Unix(wb.Timestamp, 0).UTC(),
				SpecVersion: wb.SpecVersion,
			}
			for _, ev := range wb.Events {
				block.Events = append(block.Events, chain.Event{Pallet: ev.Pallet, Name: ev.Name, Args: []byte(ev.Args)})
			}
			for _, call := range wb.Calls {
				block.Calls = append(block.Calls, chain.Call{Pallet: call.Pallet, Name: call.Name, Args: []byte(call.Args), Success: call.Success})
			}
			block.Storage = &storageClient{gateway: g, at: wb.Hash}
			batch.Blocks = append(batch.Blocks, block)
		}

		if err := handler(ctx, batch); err != nil {
			return err
		}
		next = batch.Blocks[len(batch.Blocks)-1].Height + 1
	}
}

func (g *Gateway) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return g.doJSON(req, out)
}

func (g *Gateway) postJSON(ctx context.Context, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.doJSON(req, out)
}

func (g *Gateway) doJSON(req *http.Request, out interface{}) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway %s: status %d: %s", req.URL.Path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
