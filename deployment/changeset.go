package deployment

import (
	"errors"

	"github.com/terraleaf-code/tleaf-token/deployment/operations"
)

var (
	ErrInvalidConfig      = errors.New("invalid changeset config")
	ErrInvalidEnvironment = errors.New("invalid environment")
)

// ChangeLogic encapsulates the active behavior of a ChangeSetV2.
// The config struct contains environment-specific inputs for this logical change. For example, it might contain
// the chain ids against which this change logic should be applied, or the contract bytecode to be stored.
// This is the standalone version of ChangeSetV2.Apply for use with CreateChangeSet
type ChangeLogic[C any] func(e Environment, config C) (ChangesetOutput, error)

// PreconditionVerifier functions should evaluate the supplied config, in the context of an environment, to ensure that
// the config struct is correct, and that the environmental preconditions are as expected. This is the standalone
// version of ChangeSetV2.VerifyPreconditions for use with CreateChangeSet
//
// If the configuration is unexpected type or format, the changeset should return ErrInvalidConfig. If there are
// surprising aspects in the environment (a chain missing, a deployer without a client, etc.), then
// ErrInvalidEnvironment should be returned.
type PreconditionVerifier[C any] func(e Environment, config C) error

// ChangeSetV2 is a type which encapsulates the logic to perform a set of changes to be made to an environment,
// namely storing contract code and instantiating contracts.
//
// VerifyPreconditions should be executed before invoking the Apply method.
type ChangeSetV2[C any] interface {
	// Apply performs the logic of the changeset, including any side effects such as on-chain writes.
	// It should return the ingredients of the side effects in a ChangesetOutput.
	Apply(e Environment, config C) (ChangesetOutput, error)

	// VerifyPreconditions function verifies the preconditions of the config. It should have no side effects, instead
	// returning an error if the ChangeSetV2 should not be applied, or nil if the ChangeSetV2 is safe to apply.
	VerifyPreconditions(e Environment, config C) error
}

type simpleChangeSet[C any] struct {
	apply  ChangeLogic[C]
	verify PreconditionVerifier[C]
}

func (scs simpleChangeSet[C]) Apply(e Environment, config C) (ChangesetOutput, error) {
	return scs.apply(e, config)
}

func (scs simpleChangeSet[C]) VerifyPreconditions(e Environment, config C) error {
	return scs.verify(e, config)
}

// CreateChangeSet creates a ChangeSetV2 from an execution function and a precondition verification function.
func CreateChangeSet[C any](applyFunc ChangeLogic[C], verifyFunc func(e Environment, config C) error) ChangeSetV2[C] {
	return simpleChangeSet[C]{
		apply:  applyFunc,
		verify: verifyFunc,
	}
}

// ApplyChangeSet verifies the preconditions of cs and applies it.
func ApplyChangeSet[C any](e Environment, cs ChangeSetV2[C], config C) (ChangesetOutput, error) {
	if err := cs.VerifyPreconditions(e, config); err != nil {
		return ChangesetOutput{}, err
	}
	return cs.Apply(e, config)
}

// ChangesetOutput is the output of a Changeset function.
// Think of it like a state transition output.
// The address book here should contain only new addresses created in
// this changeset.
type ChangesetOutput struct {
	AddressBook AddressBook
	// Values are identifiers produced by the changeset that downstream steps
	// read back, keyed like environment variables.
	Values  map[string]string
	Reports []operations.Report[any, any]
}
