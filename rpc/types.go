package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"puzzlechain/core"
	"puzzlechain/core/types"
)

// ExecuteResult summarises a committed transaction for RPC consumers.
type ExecuteResult struct {
	Hash        string          `json:"hash"`
	BlockNumber string          `json:"blockNumber"`
	StateRoot   string          `json:"stateRoot"`
	Answer      json.RawMessage `json:"answer"`
	Logs        []ReceiptLog    `json:"logs"`
}

// ReceiptLog captures a structured event emitted during transaction execution.
type ReceiptLog struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// EventFrame is one message on the /ws/events stream.
type EventFrame struct {
	Height     string            `json:"height"`
	TxHash     string            `json:"txHash"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// NonceResult reports the next nonce an address must sign with.
type NonceResult struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

// hexString formats a uint64 as a 0x-prefixed hexadecimal string.
func hexString(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

// ensureHexPrefix normalises hash-like values to use a 0x prefix.
func ensureHexPrefix(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		return trimmed
	}
	return "0x" + trimmed
}

func executeResultFrom(res *core.ExecResult) ExecuteResult {
	logs := make([]ReceiptLog, 0, len(res.Events))
	for _, evt := range res.Events {
		logs = append(logs, receiptLogFrom(evt))
	}
	return ExecuteResult{
		Hash:        ensureHexPrefix(hex.EncodeToString(res.Header.TxHash)),
		BlockNumber: hexString(res.Header.Height),
		StateRoot:   ensureHexPrefix(hex.EncodeToString(res.Header.StateRoot)),
		Answer:      json.RawMessage(strings.TrimRight(string(res.Answer), " ")),
		Logs:        logs,
	}
}

func receiptLogFrom(evt *types.Event) ReceiptLog {
	clone := evt.Clone()
	return ReceiptLog{Type: clone.Type, Attributes: clone.Attributes}
}

func eventFrameFrom(evt core.CommittedEvent) EventFrame {
	frame := EventFrame{
		Height: hexString(evt.Height),
		TxHash: ensureHexPrefix(hex.EncodeToString(evt.TxHash)),
	}
	if evt.Event != nil {
		log := receiptLogFrom(evt.Event)
		frame.Type = log.Type
		frame.Attributes = log.Attributes
	}
	return frame
}
