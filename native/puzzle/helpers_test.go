package puzzle

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"

	"puzzlechain/core/events"
	"puzzlechain/crypto"
)

type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) KVGet(key []byte, out interface{}) (bool, error) {
	raw, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	return true, rlp.DecodeBytes(raw, out)
}

func (m *memStore) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = encoded
	return nil
}

func (m *memStore) KVDelete(key []byte) error {
	delete(m.data, string(key))
	return nil
}

func (m *memStore) snapshot() map[string]string {
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = string(v)
	}
	return out
}

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *recordingEmitter) types() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}

const testChainID = "puzzlechain-test"

var testContract = Address{0xc0, 0x17, 0x4a}

type account struct {
	key  *ecdsa.PrivateKey
	addr Address
}

func newAccount(t *testing.T) account {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return account{key: key.PrivateKey, addr: key.PubKey().Address().Raw()}
}

func (a account) String() string { return crypto.AddressFromRaw(a.addr).String() }

func envFor(sender Address) Env {
	return Env{
		Height:   10,
		Time:     1_700_000_000,
		ChainID:  testChainID,
		Contract: testContract,
		Sender:   sender,
		TxHash:   sender[:],
	}
}

type fixture struct {
	t        *testing.T
	store    *memStore
	contract *Contract
	emitter  *recordingEmitter
	admin    account
}

func newFixture(t *testing.T, init InitMsg) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		store:    newMemStore(),
		contract: NewContract(),
		emitter:  &recordingEmitter{},
		admin:    newAccount(t),
	}
	f.contract.SetEmitter(f.emitter)
	if init.Entropy == "" {
		init.Entropy = "seed"
	}
	if err := f.contract.Instantiate(f.store, envFor(f.admin.addr), init); err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return f
}

func (f *fixture) handle(sender Address, msg HandleMsg) (*HandleAnswer, error) {
	return f.contract.Handle(f.store, envFor(sender), msg)
}

func (f *fixture) mustHandle(sender Address, msg HandleMsg) *HandleAnswer {
	f.t.Helper()
	answer, err := f.handle(sender, msg)
	if err != nil {
		f.t.Fatalf("handle %s: %v", HandleTag(msg), err)
	}
	return answer
}

func (f *fixture) query(msg QueryMsg) (*QueryAnswer, error) {
	return f.contract.Query(f.store, msg)
}

func (f *fixture) mustQuery(msg QueryMsg) *QueryAnswer {
	f.t.Helper()
	answer, err := f.query(msg)
	if err != nil {
		f.t.Fatalf("query %s: %v", QueryTag(msg), err)
	}
	return answer
}

func (f *fixture) solve(sender Address, puzzle, keyphrase string) SolveResponse {
	f.t.Helper()
	answer := f.mustHandle(sender, SolveMsg{Solution: Keyphrase{Puzzle: puzzle, Keyphrase: keyphrase}})
	return answer.Solve.Result
}

func (f *fixture) adminViewingKey() *ViewerInfo {
	f.t.Helper()
	answer := f.mustHandle(f.admin.addr, CreateViewingKeyMsg{Entropy: "admin entropy"})
	return &ViewerInfo{Address: f.admin.String(), ViewingKey: answer.ViewingKey.Key}
}

func (f *fixture) winners() []Winner {
	f.t.Helper()
	return f.mustQuery(WinnersQuery{Viewer: f.adminViewingKey()}).Winners.Winners
}

func (f *fixture) solved() []string {
	f.t.Helper()
	return f.mustQuery(SolvedQuery{}).Solved.Puzzles
}

func signedPermit(t *testing.T, acct account, params PermitParams) *Permit {
	t.Helper()
	permit, err := SignPermit(params, acct.key)
	if err != nil {
		t.Fatalf("sign permit: %v", err)
	}
	return permit
}

func defaultPermitParams(name string) PermitParams {
	return PermitParams{
		PermitName:    name,
		ChainID:       testChainID,
		AllowedTokens: []string{crypto.AddressFromRaw(testContract).String()},
		Permissions:   []Permission{PermissionOwner},
	}
}
