package puzzle

import (
	"fmt"

	"puzzlechain/crypto"
)

// Query answers a read request. It only ever receives a ReadStore, so no
// query path can write state.
func (c *Contract) Query(store ReadStore, msg QueryMsg) (*QueryAnswer, error) {
	if store == nil {
		return nil, errNilStore
	}
	if _, err := loadConfig(store); err != nil {
		return nil, err
	}
	view := keyphraseView{store: store}

	switch m := msg.(type) {
	case SolvedQuery:
		ids, err := solvedPuzzles(view)
		if err != nil {
			return nil, err
		}
		return &QueryAnswer{Solved: &SolvedAnswer{Puzzles: ids}}, nil

	case AdminsQuery:
		if _, err := authenticateAdmin(store, Credential{Viewer: m.Viewer, Permit: m.Permit}); err != nil {
			return nil, err
		}
		admins, err := adminView{store: store}.list()
		if err != nil {
			return nil, err
		}
		return &QueryAnswer{Admins: &AdminsAnswer{Admins: renderAddresses(admins)}}, nil

	case WinnersQuery:
		if _, err := authenticateAdmin(store, Credential{Viewer: m.Viewer, Permit: m.Permit}); err != nil {
			return nil, err
		}
		winners, err := listWinners(view)
		if err != nil {
			return nil, err
		}
		return &QueryAnswer{Winners: &WinnersAnswer{Winners: winners}}, nil

	case VerifyQuery:
		grade, err := verify(view, m.Solution)
		if err != nil {
			return nil, err
		}
		return &QueryAnswer{Verify: &VerifyAnswer{Grade: grade}}, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

func solvedPuzzles(view keyphraseView) ([]string, error) {
	puzzles, err := view.list()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(puzzles))
	for _, p := range puzzles {
		if p.Solved {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

// listWinners returns every stored puzzle, unsolved ones included, with a nil
// winner where none is recorded.
func listWinners(view keyphraseView) ([]Winner, error) {
	puzzles, err := view.list()
	if err != nil {
		return nil, err
	}
	winners := make([]Winner, 0, len(puzzles))
	for _, p := range puzzles {
		w := Winner{PuzzleInfo: puzzleInfo(p)}
		if p.Winner != nil {
			rendered := crypto.AddressFromRaw(*p.Winner).String()
			w.Winner = &rendered
		}
		winners = append(winners, w)
	}
	return winners, nil
}
