package inventory

import (
	"errors"
	"fmt"

	"github.com/deude27/taverto/internal/recognizer"
)

var (
	// ErrMalformedRecord indicates a SAVE, PRINT or EXPORT with no prior RUN
	// record to attach to. It is fatal for the script being parsed.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrUnresolvedContext indicates a profile switch whose client identifier
	// could not be extracted. The active database is left unchanged.
	ErrUnresolvedContext = errors.New("unresolved context")

	// ErrAlreadyParsed indicates Build was called on a script that already
	// went through an inventory pass.
	ErrAlreadyParsed = errors.New("script already parsed")

	// ErrInvalidObjectType indicates an unsupported object type.
	ErrInvalidObjectType = errors.New("invalid object type")
)

// MalformedRecordError reports an action that needs a preceding RUN record.
type MalformedRecordError struct {
	Script   string
	Action   recognizer.Kind
	Position int
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s: %s at action %d has no preceding RUN record in %s",
		ErrMalformedRecord, e.Action, e.Position, e.Script)
}

func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// UnresolvedContextError reports a profile switch without a client identifier.
type UnresolvedContextError struct {
	Script    string
	Reference string
	Position  int
}

func (e *UnresolvedContextError) Error() string {
	return fmt.Sprintf("%s: profile switch %s at action %d in %s carries no client id",
		ErrUnresolvedContext, e.Reference, e.Position, e.Script)
}

func (e *UnresolvedContextError) Unwrap() error {
	return ErrUnresolvedContext
}
