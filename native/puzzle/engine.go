package puzzle

import (
	"fmt"
)

// solve grades solution against the stored hash and, for the first correct
// answer on an unsolved puzzle, records caller as the winner. It is the only
// code path that ever writes a winner.
func solve(kp keyphraseStore, caller Address, solution Keyphrase) (SolveResponse, error) {
	id := sanitizePuzzleID(solution.Puzzle)
	p, ok, err := kp.get(id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: no puzzle with the name %q", ErrNotFound, id)
	}
	if p.Solved {
		return SolveAlreadySolved, nil
	}
	if HashKeyphrase(solution.Keyphrase) != p.KeyphraseHash {
		return SolveWrongAnswer, nil
	}
	winner := caller
	p.Solved = true
	p.Winner = &winner
	if err := kp.put(p); err != nil {
		return "", err
	}
	return SolveWinner, nil
}

// verify checks solution against an already solved puzzle without touching
// state. Unsolved puzzles are rejected so verify cannot be used to guess the
// answer before a winner exists.
func verify(kp keyphraseView, solution Keyphrase) (SolveResponse, error) {
	id := sanitizePuzzleID(solution.Puzzle)
	p, ok, err := kp.get(id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: no puzzle with the name %q", ErrNotFound, id)
	}
	if !p.Solved {
		return "", fmt.Errorf("%w: puzzle %q has not been solved", ErrInvalidOperation, id)
	}
	if HashKeyphrase(solution.Keyphrase) == p.KeyphraseHash {
		return SolveCorrect, nil
	}
	return SolveWrongAnswer, nil
}

// addKeyphrases hashes and stores every keyphrase. An existing id is
// overwritten and reopened: its winner is cleared.
func addKeyphrases(kp keyphraseStore, keyphrases []Keyphrase) ([]string, error) {
	added := make([]string, 0, len(keyphrases))
	for _, entry := range keyphrases {
		id := sanitizePuzzleID(entry.Puzzle)
		if id == "" {
			return nil, fmt.Errorf("%w: puzzle id required", ErrInvalidOperation)
		}
		if SanitizeKeyphrase(entry.Keyphrase) == "" {
			return nil, fmt.Errorf("%w: puzzle %q: keyphrase required", ErrInvalidOperation, id)
		}
		p := &Puzzle{ID: id, KeyphraseHash: HashKeyphrase(entry.Keyphrase)}
		if err := kp.put(p); err != nil {
			return nil, err
		}
		added = append(added, id)
	}
	return added, nil
}

// removeKeyphrases deletes the listed puzzles along with any recorded winner.
// Unknown ids are skipped.
func removeKeyphrases(kp keyphraseStore, ids []string) ([]string, error) {
	removed := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := sanitizePuzzleID(raw)
		ok, err := kp.remove(id)
		if err != nil {
			return nil, err
		}
		if ok {
			removed = append(removed, id)
		}
	}
	return removed, nil
}
