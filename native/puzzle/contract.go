package puzzle

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"puzzlechain/core/events"
	"puzzlechain/core/types"
	"puzzlechain/crypto"
)

// RevokeStatusSuccess is the status echoed by revoke_permit.
const RevokeStatusSuccess = "success"

// Contract dispatches init, handle and query messages against a caller
// supplied store. It holds no state of its own beyond the event sink.
type Contract struct {
	emitter events.Emitter
}

// NewContract constructs a contract that discards events.
func NewContract() *Contract {
	return &Contract{emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used by the contract.
func (c *Contract) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

func (c *Contract) emit(evt *types.Event) {
	if c == nil || evt == nil || c.emitter == nil {
		return
	}
	c.emitter.Emit(WrapEvent(evt))
}

// Instantiate records the chain binding, seeds viewing key derivation and
// installs the initial admins and puzzles. The sender is always an admin.
func (c *Contract) Instantiate(store Store, env Env, msg InitMsg) error {
	if store == nil {
		return errNilStore
	}
	if _, err := loadConfig(store); err == nil {
		return ErrAlreadyInstantiated
	} else if !errors.Is(err, ErrNotInstantiated) {
		return err
	}
	admins, err := parseAddresses(msg.Admins)
	if err != nil {
		return err
	}
	cfg := &contractConfig{ChainID: env.ChainID, Contract: env.Contract}
	if err := store.KVPut(configKey, cfg); err != nil {
		return err
	}
	creds := newCredentialStore(store)
	if err := creds.initSeed(msg.Entropy); err != nil {
		return err
	}
	installed, err := newAdminRegistry(store).add(append([]Address{env.Sender}, admins...))
	if err != nil {
		return err
	}
	added, err := addKeyphrases(newKeyphraseStore(store), msg.Keyphrases)
	if err != nil {
		return err
	}
	c.emit(InstantiatedEvent(env.ChainID, len(installed), len(added)))
	return nil
}

// Handle executes a mutating message on behalf of env.Sender.
func (c *Contract) Handle(store Store, env Env, msg HandleMsg) (*HandleAnswer, error) {
	if store == nil {
		return nil, errNilStore
	}
	if _, err := loadConfig(store); err != nil {
		return nil, err
	}
	kp := newKeyphraseStore(store)
	creds := newCredentialStore(store)
	admins := newAdminRegistry(store)

	switch m := msg.(type) {
	case SolveMsg:
		result, err := solve(kp, env.Sender, m.Solution)
		if err != nil {
			return nil, err
		}
		if result == SolveWinner {
			c.emit(SolvedEvent(sanitizePuzzleID(m.Solution.Puzzle)))
		}
		return &HandleAnswer{Solve: &SolveAnswer{Result: result}}, nil

	case AddKeyphrasesMsg:
		if err := admins.requireAdmin(env.Sender); err != nil {
			return nil, err
		}
		added, err := addKeyphrases(kp, m.Keyphrases)
		if err != nil {
			return nil, err
		}
		if len(added) > 0 {
			c.emit(KeyphrasesAddedEvent(added))
		}
		return keyphraseListAnswer(kp.keyphraseView)

	case RemoveKeyphrasesMsg:
		if err := admins.requireAdmin(env.Sender); err != nil {
			return nil, err
		}
		removed, err := removeKeyphrases(kp, m.Keyphrases)
		if err != nil {
			return nil, err
		}
		if len(removed) > 0 {
			c.emit(KeyphrasesRemovedEvent(removed))
		}
		return keyphraseListAnswer(kp.keyphraseView)

	case CreateViewingKeyMsg:
		key, err := creds.createViewingKey(env, m.Entropy)
		if err != nil {
			return nil, err
		}
		c.emit(ViewingKeySetEvent(crypto.AddressFromRaw(env.Sender).String()))
		return &HandleAnswer{ViewingKey: &ViewingKeyAnswer{Key: key}}, nil

	case SetViewingKeyMsg:
		if err := creds.setViewingKey(env.Sender, m.Key); err != nil {
			return nil, err
		}
		c.emit(ViewingKeySetEvent(crypto.AddressFromRaw(env.Sender).String()))
		return &HandleAnswer{ViewingKey: &ViewingKeyAnswer{Key: m.Key}}, nil

	case AddAdminsMsg:
		if err := admins.requireAdmin(env.Sender); err != nil {
			return nil, err
		}
		addrs, err := parseAddresses(m.Admins)
		if err != nil {
			return nil, err
		}
		updated, err := admins.add(addrs)
		if err != nil {
			return nil, err
		}
		c.emit(AdminsUpdatedEvent(len(updated)))
		return &HandleAnswer{AdminsList: &AdminsListAnswer{Admins: renderAddresses(updated)}}, nil

	case RemoveAdminsMsg:
		if err := admins.requireAdmin(env.Sender); err != nil {
			return nil, err
		}
		addrs, err := parseAddresses(m.Admins)
		if err != nil {
			return nil, err
		}
		updated, err := admins.remove(addrs)
		if err != nil {
			return nil, err
		}
		c.emit(AdminsUpdatedEvent(len(updated)))
		return &HandleAnswer{AdminsList: &AdminsListAnswer{Admins: renderAddresses(updated)}}, nil

	case RevokePermitMsg:
		if strings.TrimSpace(m.PermitName) == "" {
			return nil, fmt.Errorf("%w: permit name required", ErrInvalidOperation)
		}
		if err := creds.revokePermit(env.Sender, m.PermitName); err != nil {
			return nil, err
		}
		c.emit(PermitRevokedEvent(crypto.AddressFromRaw(env.Sender).String()))
		return &HandleAnswer{RevokePermit: &RevokePermitAnswer{Status: RevokeStatusSuccess}}, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

func keyphraseListAnswer(view keyphraseView) (*HandleAnswer, error) {
	puzzles, err := view.list()
	if err != nil {
		return nil, err
	}
	infos := make([]PuzzleInfo, 0, len(puzzles))
	for _, p := range puzzles {
		infos = append(infos, puzzleInfo(p))
	}
	return &HandleAnswer{KeyphraseList: &KeyphraseListAnswer{Keyphrases: infos}}, nil
}

func puzzleInfo(p *Puzzle) PuzzleInfo {
	return PuzzleInfo{Puzzle: p.ID, KeyphraseHash: hex.EncodeToString(p.KeyphraseHash[:])}
}

func parseAddresses(values []string) ([]Address, error) {
	out := make([]Address, 0, len(values))
	for _, value := range values {
		addr, err := crypto.ParseAddress(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%w: address %q: %v", ErrInvalidOperation, value, err)
		}
		out = append(out, addr.Raw())
	}
	return out, nil
}

func renderAddresses(addrs []Address) []string {
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, crypto.AddressFromRaw(addr).String())
	}
	return out
}
