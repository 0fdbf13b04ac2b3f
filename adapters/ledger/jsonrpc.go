package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/tron"
	"github.com/layer-3/tollgate/ports"
)

// JSONRPCLedger calls the contract through an Ethereum compatible JSON-RPC
// endpoint, such as the /jsonrpc path of a TRON full node.
type JSONRPCLedger struct {
	contract *bind.BoundContract
	closer   func()
	timeout  time.Duration
}

// DialJSONRPCLedger connects to url and binds the contract
func DialJSONRPCLedger(ctx context.Context, url, contract string, timeout time.Duration) (*JSONRPCLedger, error) {
	addr, err := tron.ParseAddress(contract)
	if err != nil {
		return nil, fmt.Errorf("contract address %q: %w", contract, err)
	}
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	l := NewJSONRPCLedger(client, addr, timeout)
	l.closer = client.Close
	return l, nil
}

// NewJSONRPCLedger binds the contract on an existing caller
func NewJSONRPCLedger(caller bind.ContractCaller, contract tron.Address, timeout time.Duration) *JSONRPCLedger {
	return &JSONRPCLedger{
		contract: bind.NewBoundContract(contract.EVM(), musicEditions, caller, nil, nil),
		timeout:  timeout,
	}
}

var _ ports.Ledger = (*JSONRPCLedger)(nil)

// URI reads uri(id)
func (l *JSONRPCLedger) URI(ctx context.Context, id *big.Int) (string, error) {
	out, err := l.call(ctx, "uri", id)
	if err != nil {
		return "", err
	}
	return decodeString(out)
}

// BalanceOf reads balanceOf(address, id)
func (l *JSONRPCLedger) BalanceOf(ctx context.Context, address string, id *big.Int) (*big.Int, error) {
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
func (l *JSONRPCLedger) Track(ctx context.Context, id *big.Int) (*core.Track, error) {
	out, err := l.call(ctx, "tracks", id)
	if err != nil {
		return nil, err
	}
	return decodeTrack(id, out)
}

// Close releases the RPC connection when the ledger dialed it itself
func (l *JSONRPCLedger) Close() {
	if l.closer != nil {
		l.closer()
	}
}

func (l *JSONRPCLedger) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	var out []interface{}
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	return out, nil
}
