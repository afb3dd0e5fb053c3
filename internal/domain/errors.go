package domain

import "errors"

var (
	ErrInvalidID           = errors.New("invalid id")
	ErrInvalidTitle        = errors.New("invalid title")
	ErrInvalidType         = errors.New("invalid type")
	ErrInvalidPriority     = errors.New("invalid priority")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidSLAHours     = errors.New("invalid sla hours")
	ErrInvalidDepType      = errors.New("invalid dependency type")
	ErrSelfDependency      = errors.New("work item cannot depend on itself")
	ErrInvalidGate         = errors.New("invalid gate")
	ErrInvalidDecision     = errors.New("invalid approval decision")
	ErrInvalidBody         = errors.New("invalid body")
	ErrInvalidArtifactKind = errors.New("invalid artifact kind")
	ErrInvalidURL          = errors.New("invalid url")
	ErrInvalidActor        = errors.New("invalid actor")
	ErrInvalidRole         = errors.New("invalid role")

	// Stage graph rule violations.
	ErrUnknownBoard      = errors.New("unknown board")
	ErrInvalidStage      = errors.New("invalid stage")
	ErrIllegalTransition = errors.New("illegal transition")
)

// RuleError reports a business-rule violation. Error returns the
// human-readable reason; errors.Is matches the wrapped sentinel.
type RuleError struct {
	Kind   error
	Reason string
}

// NewRuleError constructs a rule violation of the given kind.
func NewRuleError(kind error, reason string) error {
	return &RuleError{Kind: kind, Reason: reason}
}

// Error implements error.
func (e *RuleError) Error() string {
	if e.Reason == "" && e.Kind != nil {
		return e.Kind.Error()
	}
	return e.Reason
}

// Unwrap exposes the sentinel kind.
func (e *RuleError) Unwrap() error {
	return e.Kind
}
