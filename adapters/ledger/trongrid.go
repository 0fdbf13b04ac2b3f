package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/tron"
	"github.com/layer-3/tollgate/ports"
)

const (
	triggerConstantPath = "/wallet/triggerconstantcontract"
	apiKeyHeader        = "TRON-PRO-API-KEY"
	maxResponseBytes    = 1 << 20
)

// TronGridLedger calls the contract through a full node HTTP API
type TronGridLedger struct {
	baseURL  string
	contract tron.Address
	apiKey   string
	client   *http.Client
}

// TronGridOption customises a TronGridLedger
type TronGridOption func(*TronGridLedger)

// WithAPIKey sets the TRON-PRO-API-KEY header on every call
func WithAPIKey(key string) TronGridOption {
	return func(l *TronGridLedger) { l.apiKey = key }
}

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) TronGridOption {
	return func(l *TronGridLedger) { l.client = c }
}

// NewTronGridLedger creates a ledger bound to contract on the node at baseURL
func NewTronGridLedger(baseURL, contract string, timeout time.Duration, opts ...TronGridOption) (*TronGridLedger, error) {
	addr, err := tron.ParseAddress(contract)
	if err != nil {
		return nil, fmt.Errorf("contract address %q: %w", contract, err)
	}
	l := &TronGridLedger{
		baseURL:  strings.TrimRight(baseURL, "/"),
		contract: addr,
		client:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

var _ ports.Ledger = (*TronGridLedger)(nil)

type triggerRequest struct {
	OwnerAddress     string `json:"owner_address"`
	ContractAddress  string `json:"contract_address"`
	FunctionSelector string `json:"function_selector"`
	Parameter        string `json:"parameter"`
	Visible          bool   `json:"visible"`
}

type triggerResponse struct {
	Result struct {
		Result  bool   `json:"result"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"result"`
	ConstantResult []string `json:"constant_result"`
	Transaction    struct {
		Ret []struct {
			Ret         string `json:"ret"`
			ContractRet string `json:"contractRet"`
		} `json:"ret"`
	} `json:"transaction"`
}

// URI reads uri(id)
func (l *TronGridLedger) URI(ctx context.Context, id *big.Int) (string, error) {
	out, err := l.call(ctx, "uri", id)
	if err != nil {
		return "", err
	}
	return decodeString(out)
}

// BalanceOf reads balanceOf(address, id)
func (l *TronGridLedger) BalanceOf(ctx context.Context, address string, id *big.Int) (*big.Int, error) {
	holder, err := tron.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	out, err := l.call(ctx, "balanceOf", holder.EVM(), id)
	if err != nil {
		return nil, err
	}
	return decodeUint(out)
}

// Track reads tracks(id)
func (l *TronGridLedger) Track(ctx context.Context, id *big.Int) (*core.Track, error) {
	out, err := l.call(ctx, "tracks", id)
	if err != nil {
		return nil, err
	}
	return decodeTrack(id, out)
}

func (l *TronGridLedger) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	m, ok := musicEditions.Methods[method]
	if !ok {
		return nil, fmt.Errorf("method %s not in ABI", method)
	}
	params, err := m.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s arguments: %w", method, err)
	}

	body, err := json.Marshal(triggerRequest{
		OwnerAddress:     l.contract.String(),
		ContractAddress:  l.contract.String(),
		FunctionSelector: m.Sig,
		Parameter:        hex.EncodeToString(params),
		Visible:          true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+triggerConstantPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if l.apiKey != "" {
		req.Header.Set(apiKeyHeader, l.apiKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s call: node answered %d", method, resp.StatusCode)
	}

	var tr triggerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !tr.Result.Result {
		return nil, fmt.Errorf("%s call rejected: %s %s", method, tr.Result.Code, decodeNodeMessage(tr.Result.Message))
	}
	for _, r := range tr.Transaction.Ret {
		if r.ContractRet != "" && r.ContractRet != "SUCCESS" {
			return nil, fmt.Errorf("%s call reverted: %s", method, r.ContractRet)
		}
		// java-tron spells the success code SUCESS
		if r.Ret != "" && r.Ret != "SUCESS" && r.Ret != "SUCCESS" {
			return nil, fmt.Errorf("%s call failed: %s", method, r.Ret)
		}
	}
	if len(tr.ConstantResult) == 0 {
		return nil, fmt.Errorf("%s call returned no data", method)
	}

	data := common.FromHex(tr.ConstantResult[0])
	out, err := m.Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return out, nil
}

// decodeNodeMessage turns the hex encoded error text of java-tron into a string.
func decodeNodeMessage(msg string) string {
	raw, err := hex.DecodeString(msg)
	if err != nil {
		return msg
	}
	return string(raw)
}
