package domain

import (
	"errors"
	"testing"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name        string
		board       Board
		from        string
		to          string
		wantAllowed bool
		wantReason  string
		wantErr     error
	}{
		{
			name:        "one step forward",
			board:       BoardRequests,
			from:        "Intake",
			to:          "Clarify",
			wantAllowed: true,
		},
		{
			name:        "same stage",
			board:       BoardRequests,
			from:        "Clarify",
			to:          "Clarify",
			wantAllowed: true,
		},
		{
			name:        "one step back",
			board:       BoardRequests,
			from:        "Approved",
			to:          "Clarify",
			wantAllowed: true,
		},
		{
			name:        "many steps back",
			board:       BoardMetricFactory,
			from:        "Certified Published",
			to:          "Spec Drafted",
			wantAllowed: true,
		},
		{
			name:       "skip forward",
			board:      BoardRequests,
			from:       "Intake",
			to:         "Approved",
			wantReason: "Can only move one stage forward at a time",
			wantErr:    ErrIllegalTransition,
		},
		{
			name:       "unknown board",
			board:      Board("nope"),
			from:       "Intake",
			to:         "Clarify",
			wantReason: "Unknown board nope",
			wantErr:    ErrUnknownBoard,
		},
		{
			name:       "target not on board",
			board:      BoardRequests,
			from:       "Intake",
			to:         "Train",
			wantReason: "Invalid stage Train for board requests",
			wantErr:    ErrInvalidStage,
		},
		{
			name:       "source not on board",
			board:      BoardRequests,
			from:       "Train",
			to:         "Intake",
			wantReason: "Invalid current stage Train",
			wantErr:    ErrInvalidStage,
		},
		{
			name:       "target checked before source",
			board:      BoardRequests,
			from:       "Bogus",
			to:         "Also Bogus",
			wantReason: "Invalid stage Also Bogus for board requests",
			wantErr:    ErrInvalidStage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateTransition(tt.board, tt.from, tt.to)
			if result.Allowed != tt.wantAllowed {
				t.Fatalf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if tt.wantAllowed {
				if err := result.Err(); err != nil {
					t.Fatalf("Err() = %v, want nil", err)
				}
				return
			}
			if result.Reason != tt.wantReason {
				t.Fatalf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
			err := result.Err()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Err() = %v, want errors.Is %v", err, tt.wantErr)
			}
			if err.Error() != tt.wantReason {
				t.Fatalf("Err().Error() = %q, want %q", err.Error(), tt.wantReason)
			}
		})
	}
}

func TestValidateTransitionIndexWindowForEveryBoard(t *testing.T) {
	for _, def := range Boards() {
		for fromIdx, from := range def.Stages {
			for toIdx, to := range def.Stages {
				result := ValidateTransition(def.Board, from, to)
				want := toIdx <= fromIdx+1
				if result.Allowed != want {
					t.Fatalf("%s: %q(%d) -> %q(%d) allowed = %v, want %v", def.Board, from, fromIdx, to, toIdx, result.Allowed, want)
				}
			}
		}
	}
}

func TestRequiredGate(t *testing.T) {
	cases := []struct {
		board    Board
		stage    string
		wantGate Gate
		wantOK   bool
	}{
		{BoardMetricFactory, "Spec Approved", GateSpecApproval, true},
		{BoardMetricFactory, "Certified Published", GateReconcileApproval, true},
		{BoardMetricFactory, "Source Mapped", "", false},
		{BoardRequests, "Approved", "", false},
		{Board("unknown"), "Spec Approved", "", false},
	}
	for _, tc := range cases {
		gate, ok := RequiredGate(tc.board, tc.stage)
		if gate != tc.wantGate || ok != tc.wantOK {
			t.Fatalf("RequiredGate(%s, %q) = (%q, %v), want (%q, %v)", tc.board, tc.stage, gate, ok, tc.wantGate, tc.wantOK)
		}
	}
}

func TestBoardsFirstAndFinalStage(t *testing.T) {
	want := map[Board][2]string{
		BoardRequests:      {"Intake", "Closed"},
		BoardMetricFactory: {"Spec Drafted", "Certified Published"},
		BoardInsightAction: {"Monitor", "Outcome Logged"},
		BoardMLGenAI:       {"Problem Framed", "Retire"},
	}
	defs := Boards()
	if len(defs) != len(want) {
		t.Fatalf("Boards() len = %d, want %d", len(defs), len(want))
	}
	for _, def := range defs {
		first, ok := FirstStage(def.Board)
		if !ok {
			t.Fatalf("FirstStage(%s) not found", def.Board)
		}
		if first != want[def.Board][0] || def.FinalStage != want[def.Board][1] {
			t.Fatalf("%s: first/final = %q/%q, want %q/%q", def.Board, first, def.FinalStage, want[def.Board][0], want[def.Board][1])
		}
	}
	if _, ok := FirstStage(Board("x")); ok {
		t.Fatal("expected unknown board to have no first stage")
	}
	if FinalStage(Board("x")) != "" {
		t.Fatal("expected unknown board to have no final stage")
	}
}

func TestStagesReturnsCopy(t *testing.T) {
	stages := Stages(BoardRequests)
	stages[0] = "mutated"
	if got := Stages(BoardRequests)[0]; got != "Intake" {
		t.Fatalf("Stages() leaked internal slice, first stage = %q", got)
	}
	def := Boards()[1]
	def.Gates["Spec Approved"] = GatePublishApproval
	if gate, _ := RequiredGate(BoardMetricFactory, "Spec Approved"); gate != GateSpecApproval {
		t.Fatalf("Boards() leaked gate table, gate = %q", gate)
	}
}
