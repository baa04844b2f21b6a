package operations

import (
	"context"

	"github.com/Masterminds/semver/v3"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// Bundle contains the dependencies required by Operations API and is passed to the OperationHandler.
// It contains the Logger, the Reporter and the context.
// Use NewBundle to create a new Bundle.
type Bundle struct {
	Logger     logger.Logger
	GetContext func() context.Context
	reporter   Reporter
}

// NewBundle creates and returns a new Bundle. Reports are kept in memory
// unless a Reporter is passed.
func NewBundle(getContext func() context.Context, logger logger.Logger, reporter ...Reporter) Bundle {
	b := Bundle{
		Logger:     logger,
		GetContext: getContext,
		reporter:   NewMemoryReporter(),
	}
	if len(reporter) > 0 && reporter[0] != nil {
		b.reporter = reporter[0]
	}
	return b
}

// Reporter returns the reporter operations record into.
func (b Bundle) Reporter() Reporter {
	return b.reporter
}

// OperationHandler is the function signature of an operation handler.
type OperationHandler[IN, OUT, DEP any] func(b Bundle, deps DEP, input IN) (output OUT, err error)

// Definition is the metadata for an operation.
// It contains the ID, version and description.
type Definition struct {
	ID          string          `json:"id"`
	Version     *semver.Version `json:"version"`
	Description string          `json:"description"`
}

// Operation is the low level building block of a deployment.
// Each operation performs at most 1 side effect, e.g. one transaction.
// Use NewOperation to create a new operation.
type Operation[IN, OUT, DEP any] struct {
	def     Definition
	handler OperationHandler[IN, OUT, DEP]
}

// ID returns the operation ID.
func (o *Operation[IN, OUT, DEP]) ID() string {
	return o.def.ID
}

// Version returns the operation semver version in string.
func (o *Operation[IN, OUT, DEP]) Version() string {
	return o.def.Version.String()
}

// Description returns the operation description.
func (o *Operation[IN, OUT, DEP]) Description() string {
	return o.def.Description
}

// Def returns the operation definition.
func (o *Operation[IN, OUT, DEP]) Def() Definition {
	return o.def
}

// execute runs the operation by calling the OperationHandler.
func (o *Operation[IN, OUT, DEP]) execute(b Bundle, deps DEP, input IN) (output OUT, err error) {
	b.Logger.Infow("Executing operation",
		"id", o.def.ID, "version", o.def.Version, "description", o.def.Description)
	return o.handler(b, deps, input)
}

// NewOperation creates a new operation.
// Version can be created using semver.MustParse("1.0.0") or semver.New("1.0.0").
// Note: The handler should only perform maximum 1 side effect.
func NewOperation[IN, OUT, DEP any](
	id string, version *semver.Version, description string, handler OperationHandler[IN, OUT, DEP],
) *Operation[IN, OUT, DEP] {
	return &Operation[IN, OUT, DEP]{
		def: Definition{
			ID:          id,
			Version:     version,
			Description: description,
		},
		handler: handler,
	}
}

// ExecuteOperation runs operation with the given deps and input and records
// the outcome in the bundle's reporter. The report is returned even when the
// operation fails.
func ExecuteOperation[IN, OUT, DEP any](
	b Bundle, operation *Operation[IN, OUT, DEP], deps DEP, input IN,
) (Report[IN, OUT], error) {
	output, err := operation.execute(b, deps, input)
	report := NewReport(operation.def, input, output, err)
	if b.reporter != nil {
		if rerr := b.reporter.AddReport(genericReport(report)); rerr != nil {
			b.Logger.Errorw("Failed to record operation report", "id", operation.def.ID, "err", rerr)
		}
	}
	if err != nil {
		b.Logger.Errorw("Operation failed", "id", operation.def.ID, "version", operation.def.Version, "err", err)
		return report, err
	}
	return report, nil
}

// EmptyInput is a placeholder for operations that do not require input.
type EmptyInput struct{}
