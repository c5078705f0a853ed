package puzzle

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeHandleMsg(t *testing.T) {
	msg, err := DecodeHandleMsg([]byte(`{"solve":{"solution":{"puzzle":"p1","keyphrase":"banana split"}}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	solveMsg, ok := msg.(SolveMsg)
	if !ok {
		t.Fatalf("expected SolveMsg, got %T", msg)
	}
	if solveMsg.Solution.Puzzle != "p1" || solveMsg.Solution.Keyphrase != "banana split" {
		t.Fatalf("unexpected solution %+v", solveMsg.Solution)
	}

	msg, err = DecodeHandleMsg([]byte(`{"set_viewing_key":{"key":"k","padding":"xxxx"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if HandleTag(msg) != "set_viewing_key" {
		t.Fatalf("unexpected tag %q", HandleTag(msg))
	}
}

func TestDecodeRejectsUnknownShapes(t *testing.T) {
	inputs := []string{
		`{"transfer":{}}`,
		`{"solve":{},"add_admins":{}}`,
		`{}`,
		`[]`,
		`{"solve":{"solution":{},"extra":1}}`,
	}
	for _, input := range inputs {
		if _, err := DecodeHandleMsg([]byte(input)); err == nil {
			t.Fatalf("expected %s to be rejected", input)
		}
	}
	if _, err := DecodeQueryMsg([]byte(`{"balance":{}}`)); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage, got %v", err)
	}
}

func TestQueryMsgRoundTrip(t *testing.T) {
	original := WinnersQuery{Viewer: &ViewerInfo{Address: "pzl1xyz", ViewingKey: "api_key_a"}}
	encoded, err := EncodeQueryMsg(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeQueryMsg(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(WinnersQuery)
	if !ok || got.Viewer == nil || *got.Viewer != *original.Viewer || got.Permit != nil {
		t.Fatalf("unexpected round trip %#v", decoded)
	}

	solved, err := DecodeQueryMsg([]byte(`{"solved":{}}`))
	if err != nil {
		t.Fatalf("decode solved: %v", err)
	}
	if QueryTag(solved) != "solved" {
		t.Fatalf("unexpected tag %q", QueryTag(solved))
	}
}

func TestEncodeAnswerPads(t *testing.T) {
	answers := []interface{}{
		HandleAnswer{Solve: &SolveAnswer{Result: SolveWinner}},
		QueryAnswer{Solved: &SolvedAnswer{Puzzles: []string{"p1", "p2"}}},
	}
	for _, answer := range answers {
		encoded, err := EncodeAnswer(answer)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if len(encoded)%AnswerBlockSize != 0 {
			t.Fatalf("answer length %d not padded to %d", len(encoded), AnswerBlockSize)
		}
		var generic map[string]json.RawMessage
		if err := json.Unmarshal(encoded, &generic); err != nil {
			t.Fatalf("padded answer must stay valid JSON: %v", err)
		}
		if len(generic) != 1 {
			t.Fatalf("expected a single variant, got %d", len(generic))
		}
	}
}
