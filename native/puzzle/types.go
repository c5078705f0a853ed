package puzzle

// Address is the raw account identifier used throughout the engine.
type Address = [20]byte

// SolveResponse grades a candidate keyphrase. Solve yields winner,
// wrong_answer or already_solved; Verify yields correct or wrong_answer.
type SolveResponse string

const (
	SolveWinner        SolveResponse = "winner"
	SolveWrongAnswer   SolveResponse = "wrong_answer"
	SolveAlreadySolved SolveResponse = "already_solved"
	SolveCorrect       SolveResponse = "correct"
)

// Puzzle is a unit guarded by a hashed keyphrase with a single eventual winner.
// Winner is only ever set together with Solved.
type Puzzle struct {
	ID            string
	KeyphraseHash [32]byte
	Solved        bool
	Winner        *Address
}

// Clone returns a deep copy so callers never alias stored state.
func (p *Puzzle) Clone() *Puzzle {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Winner != nil {
		winner := *p.Winner
		clone.Winner = &winner
	}
	return &clone
}

// Env describes the call context supplied by the host for every handle and
// instantiate invocation.
type Env struct {
	Height   uint64
	Time     int64
	ChainID  string
	Contract Address
	Sender   Address
	TxHash   []byte
}

// contractConfig is persisted at instantiation so queries, which carry no Env,
// can still validate permits.
type contractConfig struct {
	ChainID  string
	Contract Address
}

type storedPuzzle struct {
	ID            string
	KeyphraseHash [32]byte
	Solved        bool
	Winner        []byte
}

func newStoredPuzzle(p *Puzzle) *storedPuzzle {
	stored := &storedPuzzle{
		ID:            p.ID,
		KeyphraseHash: p.KeyphraseHash,
		Solved:        p.Solved,
	}
	if p.Winner != nil {
		stored.Winner = append([]byte(nil), p.Winner[:]...)
	}
	return stored
}

func (s *storedPuzzle) toPuzzle() *Puzzle {
	p := &Puzzle{
		ID:            s.ID,
		KeyphraseHash: s.KeyphraseHash,
		Solved:        s.Solved,
	}
	if len(s.Winner) == len(Address{}) {
		var winner Address
		copy(winner[:], s.Winner)
		p.Winner = &winner
	}
	return p
}
