package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/terraleaf-code/tleaf-token/deployment/txlog"
)

const (
	pathAccountInfo = "/cosmos/auth/v1beta1/account_info/"
	pathAccounts    = "/cosmos/auth/v1beta1/accounts/"
	pathSimulate    = "/cosmos/tx/v1beta1/simulate"
	pathTxs         = "/cosmos/tx/v1beta1/txs"

	// grpc NotFound, as echoed in gateway error bodies
	grpcCodeNotFound = 5

	maxResponseBytes = 16 << 20
)

// HTTPError is a non-2xx answer from the LCD gateway.
type HTTPError struct {
	StatusCode int
	Code       int64
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("lcd returned status %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

func (e *HTTPError) notFound() bool {
	return e.StatusCode == http.StatusNotFound || e.Code == grpcCodeNotFound
}

// LCDClient talks to a Cosmos SDK REST gateway (LCD).
type LCDClient struct {
	cfg    LCDConfig
	base   string
	lggr   logger.Logger
	reads  *retryablehttp.Client
	writes *retryablehttp.Client
}

// LCDClient should comply with the Client interface
var _ Client = (*LCDClient)(nil)

// NewLCDClient returns a client for cfg.URL. No connection is attempted.
func NewLCDClient(lggr logger.Logger, cfg LCDConfig) (*LCDClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lggr = logger.Named(lggr, "LCDClient")
	return &LCDClient{
		cfg:    cfg,
		base:   strings.TrimRight(cfg.URL, "/"),
		lggr:   lggr,
		reads:  newHTTPClient(lggr, cfg, cfg.ReadRetryMax),
		writes: newHTTPClient(lggr, cfg, 0),
	}, nil
}

func newHTTPClient(lggr logger.Logger, cfg LCDConfig, retryMax int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.Logger = leveledLogger{lggr}
	c.RetryMax = retryMax
	if cfg.RetryWaitMin > 0 {
		c.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		c.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.RequestTimeout > 0 {
		c.HTTPClient.Timeout = cfg.RequestTimeout
	}
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}

// lcdTxResponse mirrors cosmos.base.abci.v1beta1.TxResponse as rendered by the
// gateway. Integer fields of 64 bits arrive as strings.
type lcdTxResponse struct {
	Height    int64         `json:"height,string"`
	TxHash    string        `json:"txhash"`
	Codespace string        `json:"codespace"`
	Code      uint32        `json:"code"`
	RawLog    string        `json:"raw_log"`
	Logs      []txlog.Log   `json:"logs"`
	GasWanted int64         `json:"gas_wanted,string"`
	GasUsed   int64         `json:"gas_used,string"`
	Events    []txlog.Event `json:"events"`
}

func (r lcdTxResponse) toTxResponse() *TxResponse {
	logs := r.Logs
	if len(logs) == 0 {
		logs = txlog.GroupByMessage(r.Events)
	}
	return &TxResponse{
		TxHash:    r.TxHash,
		Height:    r.Height,
		Code:      r.Code,
		Codespace: r.Codespace,
		RawLog:    r.RawLog,
		GasWanted: r.GasWanted,
		GasUsed:   r.GasUsed,
		Logs:      logs,
	}
}

func (c *LCDClient) AccountInfo(ctx context.Context, address string) (AccountInfo, error) {
	raw, err := c.do(ctx, c.reads, http.MethodGet, pathAccountInfo+url.PathEscape(address), nil)
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotImplemented:
		// gateways older than v0.47 only expose the Any-typed accounts endpoint
		return c.legacyAccount(ctx, address)
	case errors.As(err, &httpErr) && httpErr.notFound():
		return AccountInfo{}, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	case err != nil:
		return AccountInfo{}, err
	}

	var body struct {
		Info struct {
			Address       string `json:"address"`
			AccountNumber uint64 `json:"account_number,string"`
			Sequence      uint64 `json:"sequence,string"`
		} `json:"info"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return AccountInfo{}, fmt.Errorf("failed to decode account info for %s: %w", address, err)
	}
	return AccountInfo{
		Address:       address,
		AccountNumber: body.Info.AccountNumber,
		Sequence:      body.Info.Sequence,
	}, nil
}

func (c *LCDClient) legacyAccount(ctx context.Context, address string) (AccountInfo, error) {
	raw, err := c.do(ctx, c.reads, http.MethodGet, pathAccounts+url.PathEscape(address), nil)
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.notFound() {
		return AccountInfo{}, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if err != nil {
		return AccountInfo{}, err
	}
	account := gjson.GetBytes(raw, "account")
	// base, continuous/delayed vesting and module accounts nest the base account differently
	for _, prefix := range []string{"", "base_account.", "base_vesting_account.base_account."} {
		num := account.Get(prefix + "account_number")
		if !num.Exists() {
			continue
		}
		accNum, err := strconv.ParseUint(num.String(), 10, 64)
		if err != nil {
			return AccountInfo{}, fmt.Errorf("invalid account_number %q: %w", num.String(), err)
		}
		seq, err := strconv.ParseUint(account.Get(prefix+"sequence").String(), 10, 64)
		if err != nil {
			return AccountInfo{}, fmt.Errorf("invalid sequence for %s: %w", address, err)
		}
		return AccountInfo{Address: address, AccountNumber: accNum, Sequence: seq}, nil
	}
	return AccountInfo{}, fmt.Errorf("unsupported account type %q for %s", account.Get("@type").String(), address)
}

func (c *LCDClient) Simulate(ctx context.Context, txBytes []byte) (uint64, error) {
	raw, err := c.do(ctx, c.reads, http.MethodPost, pathSimulate, map[string]string{
		"tx_bytes": base64.StdEncoding.EncodeToString(txBytes),
	})
	if err != nil {
		return 0, fmt.Errorf("simulation failed: %w", err)
	}
	var body struct {
		GasInfo struct {
			GasUsed uint64 `json:"gas_used,string"`
		} `json:"gas_info"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return 0, fmt.Errorf("failed to decode simulation result: %w", err)
	}
	return body.GasInfo.GasUsed, nil
}

func (c *LCDClient) Broadcast(ctx context.Context, txBytes []byte) (*TxResponse, error) {
	c.lggr.Debugw("Broadcasting tx", "mode", c.cfg.BroadcastMode.String(), "bytes", len(txBytes))
	raw, err := c.do(ctx, c.writes, http.MethodPost, pathTxs, map[string]string{
		"tx_bytes": base64.StdEncoding.EncodeToString(txBytes),
		"mode":     c.cfg.BroadcastMode.wireName(),
	})
	if err != nil {
		return nil, fmt.Errorf("broadcast failed: %w", err)
	}
	return decodeTxResponse(raw)
}

func (c *LCDClient) GetTx(ctx context.Context, hash string) (*TxResponse, error) {
	raw, err := c.do(ctx, c.reads, http.MethodGet, pathTxs+"/"+url.PathEscape(hash), nil)
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && (httpErr.notFound() || strings.Contains(httpErr.Message, "not found")) {
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, hash)
	}
	if err != nil {
		return nil, err
	}
	return decodeTxResponse(raw)
}

func decodeTxResponse(raw []byte) (*TxResponse, error) {
	var body struct {
		TxResponse *lcdTxResponse `json:"tx_response"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("failed to decode tx response: %w", err)
	}
	if body.TxResponse == nil {
		return nil, errors.New("lcd answer carries no tx_response")
	}
	return body.TxResponse.toTxResponse(), nil
}

func (c *LCDClient) do(ctx context.Context, client *retryablehttp.Client, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		if parsed := gjson.ParseBytes(raw); parsed.IsObject() {
			httpErr.Code = parsed.Get("code").Int()
			if msg := parsed.Get("message"); msg.Exists() {
				httpErr.Message = msg.String()
			}
		}
		return nil, httpErr
	}
	return raw, nil
}

// leveledLogger adapts logger.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	lggr logger.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.lggr.Errorw(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.lggr.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.lggr.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.lggr.Warnw(msg, keysAndValues...)
}
