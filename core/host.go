package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"puzzlechain/core/events"
	"puzzlechain/core/state"
	"puzzlechain/core/types"
	"puzzlechain/crypto"
	"puzzlechain/native/puzzle"
	"puzzlechain/observability"
	telemetry "puzzlechain/observability/otel"
	"puzzlechain/storage"
	"puzzlechain/storage/trie"
)

var (
	// ErrBadNonce is returned when a transaction nonce is not the next one
	// expected from its sender.
	ErrBadNonce = errors.New("host: unexpected nonce")
	// ErrChainIDMismatch is returned for transactions signed for another chain.
	ErrChainIDMismatch = errors.New("host: chain id mismatch")
	// ErrInvalidTransaction marks transactions whose signature or payload
	// cannot be decoded.
	ErrInvalidTransaction = errors.New("host: invalid transaction")

	ErrNotInstantiated     = puzzle.ErrNotInstantiated
	ErrAlreadyInstantiated = puzzle.ErrAlreadyInstantiated
)

var headKey = []byte("puzzlechain/meta/head")

// HostConfig binds the host to a chain and a contract address.
type HostConfig struct {
	ChainID  string
	Contract [20]byte
}

// ExecResult is the outcome of a committed handle message.
type ExecResult struct {
	Answer []byte
	Events []*types.Event
	Header *types.Header
}

// CommittedEvent is what subscribers receive: a contract event together with
// the height and transaction that produced it.
type CommittedEvent struct {
	Height uint64
	TxHash []byte
	Event  *types.Event
}

// EventType implements events.Event.
func (e CommittedEvent) EventType() string {
	if e.Event == nil {
		return ""
	}
	return e.Event.Type
}

// Status summarises the committed head.
type Status struct {
	ChainID      string `json:"chainId"`
	Contract     string `json:"contract"`
	Instantiated bool   `json:"instantiated"`
	Height       uint64 `json:"height"`
	StateRoot    string `json:"stateRoot"`
	HeadHash     string `json:"headHash"`
}

// Host executes contract calls one at a time against the state trie. A call
// either commits a new root or leaves the previously committed root in place.
type Host struct {
	mu       sync.Mutex
	db       storage.Database
	trie     *trie.Trie
	state    *state.Manager
	contract *puzzle.Contract
	buffer   *events.Buffer
	feed     *events.Broadcaster
	cfg      HostConfig
	head     *types.Header
	nowFn    func() int64
	logger   *slog.Logger
	metrics  *observability.HostMetrics
	tracer   trace.Tracer
}

// NewHost opens the state committed in db, or an empty state when db is new.
func NewHost(db storage.Database, cfg HostConfig) (*Host, error) {
	if db == nil {
		return nil, fmt.Errorf("host: database required")
	}
	head, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	var root []byte
	if head != nil {
		root = head.StateRoot
	}
	stateTrie, err := trie.NewTrie(db, root)
	if err != nil {
		return nil, fmt.Errorf("host: open state: %w", err)
	}
	manager := state.NewManager(stateTrie)
	if head == nil {
		if err := manager.SetStateVersion(state.StateVersion); err != nil {
			return nil, err
		}
		if _, err := stateTrie.Commit(0); err != nil {
			return nil, err
		}
	} else if err := manager.CheckStateVersion(); err != nil {
		return nil, err
	}

	buffer := &events.Buffer{}
	contract := puzzle.NewContract()
	contract.SetEmitter(buffer)
	feed := events.NewBroadcaster()
	feed.SetDropHandler(observability.Events().RecordDrop)

	h := &Host{
		db:       db,
		trie:     stateTrie,
		state:    manager,
		contract: contract,
		buffer:   buffer,
		feed:     feed,
		cfg:      cfg,
		head:     head,
		nowFn:    func() int64 { return time.Now().Unix() },
		logger:   slog.Default().With(slog.String("component", "host")),
		metrics:  observability.Host(),
		tracer:   telemetry.Tracer("core"),
	}
	if head != nil {
		h.metrics.SetHeight(head.Height)
	}
	return h, nil
}

// SetLogger overrides the logger used for execution records.
func (h *Host) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	h.logger = logger.With(slog.String("component", "host"))
}

// SetNowFunc overrides the time source used for deterministic testing.
func (h *Host) SetNowFunc(now func() int64) {
	if now == nil {
		h.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	h.nowFn = now
}

// Subscribe streams committed events to name until cancel is called.
func (h *Host) Subscribe(name string, buffer int) (<-chan events.Event, func()) {
	return h.feed.Subscribe(name, buffer)
}

// Instantiate runs contract initialisation with sender as the first admin.
func (h *Host) Instantiate(ctx context.Context, sender [20]byte, msg puzzle.InitMsg) (*types.Header, error) {
	ctx, span := h.tracer.Start(ctx, "host.instantiate")
	defer span.End()

	h.mu.Lock()
	defer h.mu.Unlock()

	encoded, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	header, _, err := h.apply(ctx, sender, ethcrypto.Keccak256(encoded), func(env puzzle.Env) error {
		return h.contract.Instantiate(h.state, env, msg)
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	h.logger.Info("contract instantiated",
		slog.Uint64("height", header.Height),
		slog.Int("admins", len(msg.Admins)+1),
		slog.Int("puzzles", len(msg.Keyphrases)))
	return header, nil
}

// Execute verifies tx and runs its handle message.
func (h *Host) Execute(ctx context.Context, tx *types.Transaction) (*ExecResult, error) {
	started := time.Now()
	ctx, span := h.tracer.Start(ctx, "host.execute")
	defer span.End()

	msgType := "unknown"
	result, err := h.execute(ctx, tx, &msgType)
	span.SetAttributes(attribute.String("puzzle.message", msgType))
	h.metrics.ObserveExecution(msgType, time.Since(started), err)
	if err != nil {
		recordSpanError(span, err)
		h.logger.Debug("transaction rejected", slog.String("message_type", msgType), slog.String("error", err.Error()))
		return nil, err
	}
	h.logger.Info("transaction committed",
		slog.String("message_type", msgType),
		slog.Uint64("height", result.Header.Height))
	return result, nil
}

func (h *Host) execute(ctx context.Context, tx *types.Transaction, msgType *string) (*ExecResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: transaction required", ErrInvalidTransaction)
	}
	if tx.ChainID != h.cfg.ChainID {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrChainIDMismatch, tx.ChainID, h.cfg.ChainID)
	}
	from, err := tx.From()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	var sender [20]byte
	copy(sender[:], from)

	msg, err := puzzle.DecodeHandleMsg(tx.Msg)
	if err != nil {
		return nil, err
	}
	*msgType = puzzle.HandleTag(msg)
	txHash, err := tx.Hash()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	expected, err := h.state.SenderNonce(sender)
	if err != nil {
		return nil, err
	}
	if tx.Nonce != expected {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadNonce, tx.Nonce, expected)
	}

	var answer *puzzle.HandleAnswer
	header, committed, err := h.apply(ctx, sender, txHash, func(env puzzle.Env) error {
		var handleErr error
		answer, handleErr = h.contract.Handle(h.state, env, msg)
		if handleErr != nil {
			return handleErr
		}
		return h.state.SetSenderNonce(sender, expected+1)
	})
	if err != nil {
		return nil, err
	}
	if answer.Solve != nil {
		h.metrics.RecordSolve(string(answer.Solve.Result))
	}
	encoded, err := puzzle.EncodeAnswer(answer)
	if err != nil {
		return nil, err
	}
	return &ExecResult{Answer: encoded, Events: committed, Header: header}, nil
}

// apply runs fn against live state and commits on success. On failure the
// trie is reset to the last committed root and buffered events are dropped.
func (h *Host) apply(_ context.Context, sender [20]byte, txHash []byte, fn func(puzzle.Env) error) (*types.Header, []*types.Event, error) {
	height := uint64(1)
	var prevHash []byte
	if h.head != nil {
		height = h.head.Height + 1
		hash, err := h.head.Hash()
		if err != nil {
			return nil, nil, err
		}
		prevHash = hash
	}
	env := puzzle.Env{
		Height:   height,
		Time:     h.nowFn(),
		ChainID:  h.cfg.ChainID,
		Contract: h.cfg.Contract,
		Sender:   sender,
		TxHash:   txHash,
	}
	h.buffer.Reset()
	if err := fn(env); err != nil {
		if resetErr := h.rollback(); resetErr != nil {
			return nil, nil, errors.Join(err, resetErr)
		}
		return nil, nil, err
	}
	root, err := h.trie.Commit(height)
	if err != nil {
		if resetErr := h.rollback(); resetErr != nil {
			return nil, nil, errors.Join(err, resetErr)
		}
		return nil, nil, fmt.Errorf("host: commit: %w", err)
	}
	header := &types.Header{
		Height:    height,
		Timestamp: uint64(env.Time),
		PrevHash:  prevHash,
		StateRoot: root.Bytes(),
		TxHash:    txHash,
	}
	if err := storeHead(h.db, header); err != nil {
		return nil, nil, err
	}
	h.head = header
	h.metrics.SetHeight(height)

	raw := make([]*types.Event, 0)
	for _, evt := range h.buffer.Drain() {
		payload := unwrapEvent(evt)
		if payload == nil {
			continue
		}
		raw = append(raw, payload)
		observability.Events().RecordEvent(payload.Type)
		h.feed.Emit(CommittedEvent{Height: height, TxHash: txHash, Event: payload.Clone()})
	}
	return header, raw, nil
}

func (h *Host) rollback() error {
	h.buffer.Reset()
	return h.trie.Reset(h.trie.Root())
}

// Query answers a tagged query message against committed state.
func (h *Host) Query(ctx context.Context, raw []byte) ([]byte, error) {
	_, span := h.tracer.Start(ctx, "host.query")
	defer span.End()

	msg, err := puzzle.DecodeQueryMsg(raw)
	if err != nil {
		h.metrics.ObserveQuery("unknown", err)
		recordSpanError(span, err)
		return nil, err
	}
	tag := puzzle.QueryTag(msg)
	span.SetAttributes(attribute.String("puzzle.query", tag))

	h.mu.Lock()
	answer, err := h.contract.Query(h.state.ReadOnly(), msg)
	h.mu.Unlock()
	h.metrics.ObserveQuery(tag, err)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return puzzle.EncodeAnswer(answer)
}

// Nonce returns the next nonce expected from addr.
func (h *Host) Nonce(addr [20]byte) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.SenderNonce(addr)
}

// Status reports the committed head.
func (h *Host) Status() (*Status, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	status := &Status{
		ChainID:      h.cfg.ChainID,
		Contract:     crypto.AddressFromRaw(h.cfg.Contract).String(),
		Instantiated: h.head != nil,
		StateRoot:    h.trie.Root().Hex(),
	}
	if h.head != nil {
		status.Height = h.head.Height
		hash, err := h.head.Hash()
		if err != nil {
			return nil, err
		}
		status.HeadHash = common.BytesToHash(hash).Hex()
	}
	return status, nil
}

// Instantiated reports whether the contract has been initialised.
func (h *Host) Instantiated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.head != nil
}

func unwrapEvent(evt events.Event) *types.Event {
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		return carrier.Event()
	}
	return nil
}

func loadHead(db storage.Database) (*types.Header, error) {
	raw, err := db.Get(headKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var header types.Header
	if err := rlp.DecodeBytes(raw, &header); err != nil {
		return nil, fmt.Errorf("host: decode head: %w", err)
	}
	return &header, nil
}

func storeHead(db storage.Database, header *types.Header) error {
	encoded, err := rlp.EncodeToBytes(header)
	if err != nil {
		return err
	}
	return db.Put(headKey, encoded)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
