package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Board identifies one workflow template.
type Board string

// Board values.
const (
	BoardRequests      Board = "requests"
	BoardMetricFactory Board = "metric_factory"
	BoardInsightAction Board = "insight_action"
	BoardMLGenAI       Board = "ml_genai"
)

// Gate names one approval requirement attached to entering a stage.
type Gate string

// Gate values.
const (
	GateSpecApproval      Gate = "spec_approval"
	GateReconcileApproval Gate = "reconcile_approval"
	GatePublishApproval   Gate = "publish_approval"
)

var validGates = []Gate{GateSpecApproval, GateReconcileApproval, GatePublishApproval}

// boardOrder fixes the canonical listing order of boards.
var boardOrder = []Board{BoardRequests, BoardMetricFactory, BoardInsightAction, BoardMLGenAI}

// boardStages is the ordered stage list per board; index is sequence position.
var boardStages = map[Board][]string{
	BoardRequests: {"Intake", "Clarify", "Approved", "In Build", "Delivered", "Closed"},
	BoardMetricFactory: {
		"Spec Drafted",
		"Spec Approved",
		"Source Mapped",
		"Capture Gaps Raised",
		"Pipeline Built",
		"DQ Checks Implemented",
		"Reconciliation Passed",
		"Certified Published",
	},
	BoardInsightAction: {"Monitor", "Investigate", "Explain", "Recommend", "Action Created", "Outcome Logged"},
	BoardMLGenAI:       {"Problem Framed", "Data Ready", "Features Ready", "Train", "Evaluate", "Deploy", "Monitor", "Retire"},
}

// gateRequirements maps (board, stage) to the gate required to enter that stage.
var gateRequirements = map[Board]map[string]Gate{
	BoardMetricFactory: {
		"Spec Approved":       GateSpecApproval,
		"Certified Published": GateReconcileApproval,
	},
}

// BoardDefinition is a read-only view of one board's stage graph.
type BoardDefinition struct {
	Board      Board           `json:"board"`
	Stages     []string        `json:"stages"`
	FinalStage string          `json:"final_stage"`
	Gates      map[string]Gate `json:"gates,omitempty"`
}

// Boards returns every board definition in canonical order.
func Boards() []BoardDefinition {
	out := make([]BoardDefinition, 0, len(boardOrder))
	for _, board := range boardOrder {
		def := BoardDefinition{
			Board:      board,
			Stages:     Stages(board),
			FinalStage: FinalStage(board),
		}
		if gates := gateRequirements[board]; len(gates) > 0 {
			def.Gates = make(map[string]Gate, len(gates))
			for stage, gate := range gates {
				def.Gates[stage] = gate
			}
		}
		out = append(out, def)
	}
	return out
}

// NormalizeBoard canonicalizes a board name.
func NormalizeBoard(board Board) Board {
	return Board(strings.TrimSpace(strings.ToLower(string(board))))
}

// IsValidBoard reports whether the board has a stage graph.
func IsValidBoard(board Board) bool {
	_, ok := boardStages[NormalizeBoard(board)]
	return ok
}

// Stages returns a copy of the ordered stages of a board, or nil when unknown.
func Stages(board Board) []string {
	stages, ok := boardStages[NormalizeBoard(board)]
	if !ok {
		return nil
	}
	return slices.Clone(stages)
}

// FirstStage returns the entry stage of a board.
func FirstStage(board Board) (string, bool) {
	stages := boardStages[NormalizeBoard(board)]
	if len(stages) == 0 {
		return "", false
	}
	return stages[0], true
}

// FinalStage returns the terminal stage of a board, or "" when unknown.
func FinalStage(board Board) string {
	stages := boardStages[NormalizeBoard(board)]
	if len(stages) == 0 {
		return ""
	}
	return stages[len(stages)-1]
}

// StageIndex returns the sequence position of a stage, or -1.
func StageIndex(board Board, stage string) int {
	return slices.Index(boardStages[NormalizeBoard(board)], stage)
}

// RequiredGate reports the gate required to enter toStage on board.
func RequiredGate(board Board, toStage string) (Gate, bool) {
	gate, ok := gateRequirements[NormalizeBoard(board)][toStage]
	return gate, ok
}

// IsValidGate reports whether the gate name is supported.
func IsValidGate(gate Gate) bool {
	return slices.Contains(validGates, gate)
}

// TransitionResult represents the outcome of a stage transition check.
type TransitionResult struct {
	Allowed bool
	Reason  string
	cause   error
}

// Err converts a rejected transition into an error matching one of
// ErrUnknownBoard, ErrInvalidStage or ErrIllegalTransition.
func (r TransitionResult) Err() error {
	if r.Allowed {
		return nil
	}
	cause := r.cause
	if cause == nil {
		cause = ErrIllegalTransition
	}
	return NewRuleError(cause, r.Reason)
}

// ValidateTransition checks a stage move against the board's stage graph.
// Rules:
// - board must exist
// - toStage and fromStage must belong to the board
// - the target may be at most one position ahead of the source
//
// Staying on the same stage or moving back any number of stages is allowed.
func ValidateTransition(board Board, fromStage, toStage string) TransitionResult {
	stages, ok := boardStages[NormalizeBoard(board)]
	if !ok {
		return TransitionResult{
			Reason: fmt.Sprintf("Unknown board %s", board),
			cause:  ErrUnknownBoard,
		}
	}
	fromIdx := slices.Index(stages, fromStage)
	toIdx := slices.Index(stages, toStage)
	if toIdx == -1 {
		return TransitionResult{
			Reason: fmt.Sprintf("Invalid stage %s for board %s", toStage, board),
			cause:  ErrInvalidStage,
		}
	}
	if fromIdx == -1 {
		return TransitionResult{
			Reason: fmt.Sprintf("Invalid current stage %s", fromStage),
			cause:  ErrInvalidStage,
		}
	}
	if toIdx > fromIdx+1 {
		return TransitionResult{
			Reason: "Can only move one stage forward at a time",
			cause:  ErrIllegalTransition,
		}
	}
	return TransitionResult{Allowed: true}
}
