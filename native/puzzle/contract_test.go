package puzzle

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func banana() InitMsg {
	return InitMsg{Keyphrases: []Keyphrase{{Puzzle: "p1", Keyphrase: "banana split"}}}
}

func TestSolveRecordsFirstWinner(t *testing.T) {
	f := newFixture(t, banana())
	x, y := newAccount(t), newAccount(t)

	if got := f.solve(x.addr, "p1", "banana split"); got != SolveWinner {
		t.Fatalf("first solve: expected %s, got %s", SolveWinner, got)
	}
	if got := f.solve(y.addr, "p1", "banana split"); got != SolveAlreadySolved {
		t.Fatalf("second solve: expected %s, got %s", SolveAlreadySolved, got)
	}

	winners := f.winners()
	if len(winners) != 1 {
		t.Fatalf("expected one winner entry, got %d", len(winners))
	}
	if winners[0].PuzzleInfo.Puzzle != "p1" || winners[0].Winner == nil || *winners[0].Winner != x.String() {
		t.Fatalf("unexpected winner entry %+v", winners[0])
	}
	require.Contains(t, f.emitter.types(), EventTypeSolved)
}

func TestSolveWrongAnswerLeavesPuzzleOpen(t *testing.T) {
	f := newFixture(t, banana())
	x := newAccount(t)

	if got := f.solve(x.addr, "p1", "wrong"); got != SolveWrongAnswer {
		t.Fatalf("expected %s, got %s", SolveWrongAnswer, got)
	}
	if solved := f.solved(); len(solved) != 0 {
		t.Fatalf("expected no solved puzzles, got %v", solved)
	}
	winners := f.winners()
	if winners[0].Winner != nil {
		t.Fatalf("expected no winner, got %s", *winners[0].Winner)
	}
}

func TestSolveSanitizesKeyphrase(t *testing.T) {
	f := newFixture(t, banana())
	x := newAccount(t)
	if got := f.solve(x.addr, " p1 ", "  Banana\tSPLIT\n"); got != SolveWinner {
		t.Fatalf("expected sanitized answer to win, got %s", got)
	}
}

func TestSolveAcceptsDecomposedAccents(t *testing.T) {
	f := newFixture(t, InitMsg{Keyphrases: []Keyphrase{{Puzzle: "p1", Keyphrase: "Caf\u00e9 Cr\u00e8me"}}})
	x := newAccount(t)
	if got := f.solve(x.addr, "p1", "cafe\u0301 cre\u0300me"); got != SolveWinner {
		t.Fatalf("expected decomposed answer to win, got %s", got)
	}
}

func TestSolveUnknownPuzzle(t *testing.T) {
	f := newFixture(t, banana())
	x := newAccount(t)
	_, err := f.handle(x.addr, SolveMsg{Solution: Keyphrase{Puzzle: "nope", Keyphrase: "x"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSolveIdempotentAfterWinner(t *testing.T) {
	f := newFixture(t, banana())
	x := newAccount(t)
	require.Equal(t, SolveWinner, f.solve(x.addr, "p1", "banana split"))

	for _, candidate := range []string{"banana split", "wrong", ""} {
		for _, caller := range []account{x, newAccount(t), f.admin} {
			require.Equal(t, SolveAlreadySolved, f.solve(caller.addr, "p1", candidate))
		}
	}
	winners := f.winners()
	require.NotNil(t, winners[0].Winner)
	require.Equal(t, x.String(), *winners[0].Winner)
}

func TestVerify(t *testing.T) {
	f := newFixture(t, banana())
	x := newAccount(t)

	_, err := f.query(VerifyQuery{Solution: Keyphrase{Puzzle: "p1", Keyphrase: "banana split"}})
	if !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("verify before solve: expected ErrInvalidOperation, got %v", err)
	}
	_, err = f.query(VerifyQuery{Solution: Keyphrase{Puzzle: "missing", Keyphrase: "banana split"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("verify unknown: expected ErrNotFound, got %v", err)
	}

	f.solve(x.addr, "p1", "banana split")
	answer := f.mustQuery(VerifyQuery{Solution: Keyphrase{Puzzle: "p1", Keyphrase: "banana split"}})
	require.Equal(t, SolveCorrect, answer.Verify.Grade)
	answer = f.mustQuery(VerifyQuery{Solution: Keyphrase{Puzzle: "p1", Keyphrase: "apple"}})
	require.Equal(t, SolveWrongAnswer, answer.Verify.Grade)
}

func TestVerifyNeverMutates(t *testing.T) {
	f := newFixture(t, InitMsg{Keyphrases: []Keyphrase{
		{Puzzle: "p1", Keyphrase: "banana split"},
		{Puzzle: "p2", Keyphrase: "rocky road"},
	}})
	x := newAccount(t)
	f.solve(x.addr, "p1", "banana split")

	viewer := f.adminViewingKey()
	solvedBefore := f.solved()
	winnersBefore := f.mustQuery(WinnersQuery{Viewer: viewer}).Winners.Winners
	stateBefore := f.store.snapshot()

	for i := 0; i < 5; i++ {
		f.query(VerifyQuery{Solution: Keyphrase{Puzzle: "p1", Keyphrase: "banana split"}})
		f.query(VerifyQuery{Solution: Keyphrase{Puzzle: "p1", Keyphrase: "nope"}})
		f.query(VerifyQuery{Solution: Keyphrase{Puzzle: "p2", Keyphrase: "rocky road"}})
	}

	if !reflect.DeepEqual(stateBefore, f.store.snapshot()) {
		t.Fatalf("verify mutated state")
	}
	require.Equal(t, solvedBefore, f.solved())
	require.Equal(t, winnersBefore, f.mustQuery(WinnersQuery{Viewer: viewer}).Winners.Winners)
}

func TestRemoveLastAdminRejected(t *testing.T) {
	f := newFixture(t, InitMsg{})

	_, err := f.handle(f.admin.addr, RemoveAdminsMsg{Admins: []string{f.admin.String()}})
	if !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}
	answer := f.mustQuery(AdminsQuery{Viewer: f.adminViewingKey()})
	require.Equal(t, []string{f.admin.String()}, answer.Admins.Admins)
}

func TestAdminManagement(t *testing.T) {
	f := newFixture(t, InitMsg{})
	b, outsider := newAccount(t), newAccount(t)

	answer := f.mustHandle(f.admin.addr, AddAdminsMsg{Admins: []string{b.String(), b.String()}})
	require.Equal(t, []string{f.admin.String(), b.String()}, answer.AdminsList.Admins)

	_, err := f.handle(outsider.addr, AddAdminsMsg{Admins: []string{outsider.String()}})
	require.ErrorIs(t, err, ErrUnauthorized)

	answer = f.mustHandle(b.addr, RemoveAdminsMsg{Admins: []string{outsider.String()}})
	require.Len(t, answer.AdminsList.Admins, 2, "removing a non-admin is a no-op")

	answer = f.mustHandle(b.addr, RemoveAdminsMsg{Admins: []string{f.admin.String()}})
	require.Equal(t, []string{b.String()}, answer.AdminsList.Admins)

	_, err = f.handle(f.admin.addr, AddKeyphrasesMsg{Keyphrases: []Keyphrase{{Puzzle: "p9", Keyphrase: "x"}}})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.handle(b.addr, AddAdminsMsg{Admins: []string{"not-an-address"}})
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestInstantiateAdmins(t *testing.T) {
	extra := newAccount(t)
	f := newFixture(t, InitMsg{Admins: []string{extra.String()}})
	viewer := f.adminViewingKey()
	answer := f.mustQuery(AdminsQuery{Viewer: viewer})
	require.Equal(t, []string{f.admin.String(), extra.String()}, answer.Admins.Admins)

	err := f.contract.Instantiate(f.store, envFor(extra.addr), InitMsg{Entropy: "again"})
	require.ErrorIs(t, err, ErrAlreadyInstantiated)
	require.Equal(t, []string{EventTypeInstantiated}, f.emitter.types()[:1])
}

func TestHandleBeforeInstantiate(t *testing.T) {
	contract := NewContract()
	attempt := SolveMsg{Solution: Keyphrase{Puzzle: "p1", Keyphrase: "x"}}
	_, err := contract.Handle(newMemStore(), envFor(Address{1}), attempt)
	require.ErrorIs(t, err, ErrNotInstantiated)
	_, err = contract.Query(newMemStore(), SolvedQuery{})
	require.ErrorIs(t, err, ErrNotInstantiated)
}

func TestReAddReopensPuzzle(t *testing.T) {
	f := newFixture(t, banana())
	x, y := newAccount(t), newAccount(t)
	require.Equal(t, SolveWinner, f.solve(x.addr, "p1", "banana split"))

	answer := f.mustHandle(f.admin.addr, AddKeyphrasesMsg{Keyphrases: []Keyphrase{{Puzzle: "p1", Keyphrase: "cherry pie"}}})
	require.Len(t, answer.KeyphraseList.Keyphrases, 1)
	require.Empty(t, f.solved())
	require.Nil(t, f.winners()[0].Winner)

	require.Equal(t, SolveWrongAnswer, f.solve(y.addr, "p1", "banana split"))
	require.Equal(t, SolveWinner, f.solve(y.addr, "p1", "cherry pie"))
	require.Equal(t, y.String(), *f.winners()[0].Winner)
}

func TestKeyphraseListAndRemoval(t *testing.T) {
	f := newFixture(t, banana())
	x := newAccount(t)

	answer := f.mustHandle(f.admin.addr, AddKeyphrasesMsg{Keyphrases: []Keyphrase{
		{Puzzle: "p2", Keyphrase: "rocky road"},
		{Puzzle: "p3", Keyphrase: "mint chip"},
	}})
	ids := make([]string, 0, 3)
	for _, info := range answer.KeyphraseList.Keyphrases {
		ids = append(ids, info.Puzzle)
		require.Len(t, info.KeyphraseHash, 64)
	}
	require.Equal(t, []string{"p1", "p2", "p3"}, ids)

	f.solve(x.addr, "p2", "rocky road")
	answer = f.mustHandle(f.admin.addr, RemoveKeyphrasesMsg{Keyphrases: []string{"p2", "unknown"}})
	require.Len(t, answer.KeyphraseList.Keyphrases, 2)
	require.Empty(t, f.solved())

	_, err := f.handle(x.addr, SolveMsg{Solution: Keyphrase{Puzzle: "p2", Keyphrase: "rocky road"}})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.handle(f.admin.addr, AddKeyphrasesMsg{Keyphrases: []Keyphrase{{Puzzle: "p4", Keyphrase: " \t "}}})
	require.ErrorIs(t, err, ErrInvalidOperation)
	_, err = f.handle(f.admin.addr, AddKeyphrasesMsg{Keyphrases: []Keyphrase{{Puzzle: "", Keyphrase: "x"}}})
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestWinnersIncludeUnsolved(t *testing.T) {
	f := newFixture(t, InitMsg{Keyphrases: []Keyphrase{
		{Puzzle: "p1", Keyphrase: "banana split"},
		{Puzzle: "p2", Keyphrase: "rocky road"},
	}})
	x := newAccount(t)
	f.solve(x.addr, "p2", "rocky road")

	winners := f.winners()
	require.Len(t, winners, 2)
	require.Equal(t, "p1", winners[0].PuzzleInfo.Puzzle)
	require.Nil(t, winners[0].Winner)
	require.Equal(t, "p2", winners[1].PuzzleInfo.Puzzle)
	require.Equal(t, x.String(), *winners[1].Winner)
	require.Equal(t, []string{"p2"}, f.solved())
}

func TestWinnerImpliesSolved(t *testing.T) {
	store := newMemStore()
	kp := newKeyphraseStore(store)
	winner := Address{9}
	err := kp.put(&Puzzle{ID: "bad", Winner: &winner})
	if err == nil {
		t.Fatalf("expected put to reject a winner on an unsolved puzzle")
	}
}
