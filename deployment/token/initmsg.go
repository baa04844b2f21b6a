package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidInitMsg = errors.New("invalid init message template")

// initMsgSchema mirrors the validation the cw20 contract applies on
// instantiation so that bad templates fail before any fee is paid.
const initMsgSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 3, "maxLength": 50},
    "symbol": {"type": "string", "pattern": "^[a-zA-Z\\-]{3,12}$"},
    "decimals": {"type": "integer", "minimum": 0, "maximum": 18},
    "admins": {"type": "array", "items": {"type": "string"}},
    "initial_balances": {"type": "array"},
    "mint": {"type": ["object", "null"]},
    "marketing": {"type": ["object", "null"]}
  }
}`

// Supply is a token amount in whole tokens together with the number of
// decimals of the token.
type Supply struct {
	Amount   decimal.Decimal
	Decimals int32
}

// DefaultSupply is 1 billion tokens at 6 decimals.
func DefaultSupply() Supply {
	return Supply{Amount: decimal.NewFromInt(1_000_000_000), Decimals: 6}
}

// ParseSupply parses a whole token amount such as "1000000000" or "12.5".
func ParseSupply(amount string, decimals int32) (Supply, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Supply{}, fmt.Errorf("invalid supply %q: %w", amount, err)
	}
	s := Supply{Amount: d, Decimals: decimals}
	if _, err := s.BaseUnits(); err != nil {
		return Supply{}, err
	}
	return s, nil
}

// BaseUnits is the supply in the token's smallest unit.
func (s Supply) BaseUnits() (math.Int, error) {
	if s.Decimals < 0 || s.Decimals > 18 {
		return math.Int{}, fmt.Errorf("decimals must be within [0, 18], got %d", s.Decimals)
	}
	units := s.Amount.Shift(s.Decimals)
	if !units.IsPositive() {
		return math.Int{}, fmt.Errorf("supply must be positive, got %s", s.Amount)
	}
	if !units.IsInteger() {
		return math.Int{}, fmt.Errorf("supply %s has more than %d decimal places", s.Amount, s.Decimals)
	}
	return math.NewIntFromBigInt(units.BigInt()), nil
}

func (s Supply) String() string {
	return fmt.Sprintf("%s (%d decimals)", s.Amount.String(), s.Decimals)
}

// InitialBalance is one entry of the cw20 initial_balances list.
type InitialBalance struct {
	Address string   `json:"address"`
	Amount  math.Int `json:"amount"`
}

// LoadInitTemplate reads and validates an init message template.
func LoadInitTemplate(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read init message template: %w", err)
	}
	if err := ValidateInitTemplate(b); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// ValidateInitTemplate checks template against the cw20 init schema.
func ValidateInitTemplate(template []byte) error {
	if !json.Valid(template) {
		return fmt.Errorf("%w: not valid JSON", ErrInvalidInitMsg)
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(initMsgSchema),
		gojsonschema.NewBytesLoader(template),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInitMsg, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidInitMsg, strings.Join(msgs, "; "))
	}
	return nil
}

// BuildInitMsg sets admins to [admin] and initial_balances to the whole
// supply held by admin. Every other field of template is kept as is.
func BuildInitMsg(template []byte, admin string, supply Supply) (json.RawMessage, error) {
	if admin == "" {
		return nil, fmt.Errorf("%w: admin address must be set", ErrInvalidInitMsg)
	}
	if err := ValidateInitTemplate(template); err != nil {
		return nil, err
	}
	amount, err := supply.BaseUnits()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInitMsg, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(template, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInitMsg, err)
	}
	if raw, ok := fields["decimals"]; ok {
		var decimals int32
		if err := json.Unmarshal(raw, &decimals); err != nil {
			return nil, fmt.Errorf("%w: decimals: %w", ErrInvalidInitMsg, err)
		}
		if decimals != supply.Decimals {
			return nil, fmt.Errorf("%w: template has %d decimals but supply uses %d", ErrInvalidInitMsg, decimals, supply.Decimals)
		}
	}

	if fields["admins"], err = json.Marshal([]string{admin}); err != nil {
		return nil, err
	}
	if fields["initial_balances"], err = json.Marshal([]InitialBalance{{Address: admin, Amount: amount}}); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}
