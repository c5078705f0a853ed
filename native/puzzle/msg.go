package puzzle

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AnswerBlockSize is the granularity answers are padded to so their length
// does not reveal which answer was produced.
const AnswerBlockSize = 256

// Keyphrase pairs a puzzle id with a candidate or stored answer.
type Keyphrase struct {
	Puzzle    string `json:"puzzle" yaml:"puzzle"`
	Keyphrase string `json:"keyphrase" yaml:"keyphrase"`
}

// PuzzleInfo identifies a stored puzzle. The keyphrase only ever leaves the
// contract as its hex-encoded hash.
type PuzzleInfo struct {
	Puzzle        string `json:"puzzle"`
	KeyphraseHash string `json:"keyphrase_hash"`
}

// Winner reports a puzzle and its recorded winner, if any.
type Winner struct {
	PuzzleInfo PuzzleInfo `json:"puzzle_info"`
	Winner     *string    `json:"winner"`
}

// InitMsg instantiates the contract.
type InitMsg struct {
	// Admins in addition to the instantiator.
	Admins     []string    `json:"admins,omitempty" yaml:"admins"`
	Keyphrases []Keyphrase `json:"keyphrases,omitempty" yaml:"keyphrases"`
	// Entropy seeds viewing key derivation.
	Entropy string `json:"entropy" yaml:"entropy"`
}

// HandleMsg is the closed set of mutating requests.
type HandleMsg interface {
	handleTag() string
}

type SolveMsg struct {
	Solution Keyphrase `json:"solution"`
}

type AddKeyphrasesMsg struct {
	Keyphrases []Keyphrase `json:"keyphrases"`
}

type RemoveKeyphrasesMsg struct {
	Keyphrases []string `json:"keyphrases"`
}

type CreateViewingKeyMsg struct {
	Entropy string `json:"entropy"`
}

type SetViewingKeyMsg struct {
	Key string `json:"key"`
	// Padding lets callers hide the key length; it is ignored.
	Padding *string `json:"padding,omitempty"`
}

type AddAdminsMsg struct {
	Admins []string `json:"admins"`
}

type RemoveAdminsMsg struct {
	Admins []string `json:"admins"`
}

type RevokePermitMsg struct {
	PermitName string `json:"permit_name"`
}

func (SolveMsg) handleTag() string            { return "solve" }
func (AddKeyphrasesMsg) handleTag() string    { return "add_keyphrases" }
func (RemoveKeyphrasesMsg) handleTag() string { return "remove_keyphrases" }
func (CreateViewingKeyMsg) handleTag() string { return "create_viewing_key" }
func (SetViewingKeyMsg) handleTag() string    { return "set_viewing_key" }
func (AddAdminsMsg) handleTag() string        { return "add_admins" }
func (RemoveAdminsMsg) handleTag() string     { return "remove_admins" }
func (RevokePermitMsg) handleTag() string     { return "revoke_permit" }

// HandleTag returns the wire tag of msg.
func HandleTag(msg HandleMsg) string {
	if msg == nil {
		return ""
	}
	return msg.handleTag()
}

// QueryMsg is the closed set of read requests.
type QueryMsg interface {
	queryTag() string
}

type SolvedQuery struct{}

type AdminsQuery struct {
	Viewer *ViewerInfo `json:"viewer,omitempty"`
	Permit *Permit     `json:"permit,omitempty"`
}

type WinnersQuery struct {
	Viewer *ViewerInfo `json:"viewer,omitempty"`
	Permit *Permit     `json:"permit,omitempty"`
}

type VerifyQuery struct {
	Solution Keyphrase `json:"solution"`
}

func (SolvedQuery) queryTag() string  { return "solved" }
func (AdminsQuery) queryTag() string  { return "admins" }
func (WinnersQuery) queryTag() string { return "winners" }
func (VerifyQuery) queryTag() string  { return "verify" }

// QueryTag returns the wire tag of msg.
func QueryTag(msg QueryMsg) string {
	if msg == nil {
		return ""
	}
	return msg.queryTag()
}

// HandleAnswer is the response to a HandleMsg. Exactly one field is set.
type HandleAnswer struct {
	AdminsList    *AdminsListAnswer    `json:"admins_list,omitempty"`
	ViewingKey    *ViewingKeyAnswer    `json:"viewing_key,omitempty"`
	RevokePermit  *RevokePermitAnswer  `json:"revoke_permit,omitempty"`
	KeyphraseList *KeyphraseListAnswer `json:"keyphrase_list,omitempty"`
	Solve         *SolveAnswer         `json:"solve,omitempty"`
}

type AdminsListAnswer struct {
	Admins []string `json:"admins"`
}

type ViewingKeyAnswer struct {
	Key string `json:"key"`
}

type RevokePermitAnswer struct {
	Status string `json:"status"`
}

type KeyphraseListAnswer struct {
	Keyphrases []PuzzleInfo `json:"keyphrases"`
}

type SolveAnswer struct {
	Result SolveResponse `json:"result"`
}

// QueryAnswer is the response to a QueryMsg. Exactly one field is set.
type QueryAnswer struct {
	Admins  *AdminsAnswer  `json:"admins,omitempty"`
	Solved  *SolvedAnswer  `json:"solved,omitempty"`
	Winners *WinnersAnswer `json:"winners,omitempty"`
	Verify  *VerifyAnswer  `json:"verify,omitempty"`
}

type AdminsAnswer struct {
	Admins []string `json:"admins"`
}

type SolvedAnswer struct {
	Puzzles []string `json:"puzzles"`
}

type WinnersAnswer struct {
	Winners []Winner `json:"winners"`
}

type VerifyAnswer struct {
	Grade SolveResponse `json:"grade"`
}

func splitTagged(data []byte) (string, json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", nil, fmt.Errorf("%w: decode message: %v", ErrUnknownMessage, err)
	}
	if len(envelope) != 1 {
		return "", nil, fmt.Errorf("%w: message must have exactly one variant, got %d", ErrUnknownMessage, len(envelope))
	}
	for tag, body := range envelope {
		return tag, body, nil
	}
	return "", nil, ErrUnknownMessage
}

func decodeBody(tag string, body json.RawMessage, out interface{}) error {
	if len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUnknownMessage, tag, err)
	}
	return nil
}

// DecodeHandleMsg parses an externally tagged handle message such as
// {"solve":{"solution":{...}}}.
func DecodeHandleMsg(data []byte) (HandleMsg, error) {
	tag, body, err := splitTagged(data)
	if err != nil {
		return nil, err
	}
	var msg HandleMsg
	switch tag {
	case "solve":
		m := SolveMsg{}
		err = decodeBody(tag, body, &m)
		msg = m
	case "add_keyphrases":
		m := AddKeyphrasesMsg{}
		err = decodeBody(tag, body, &m)
		msg = m
	case "remove_keyphrases":
		m := RemoveKeyphrasesMsg{}
		err = decodeBody(tag, body, &m)
		msg = m
	case "create_viewing_key":
		m := CreateViewingKeyMsg{}
		err = decodeBody(tag, body, &m)
		msg = m
	case "set_viewing_key":
		m := SetViewingKeyMsg{}
		err = decodeBody(tag, body, &m)
		msg = m
	case "add_admins":
		m := AddAdminsMsg{}
		err = decodeBody(tag, body, &m)
		msg = m
	case "remove_admins":
		m := RemoveAdminsMsg{}
		err = decodeBody(tag, body, &m)
		msg = m
	case "revoke_permit":
		m := RevokePermitMsg{}
		err = decodeBody(tag, body, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: handle %q", ErrUnknownMessage, tag)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeQueryMsg parses an externally tagged query message such as
// {"solved":{}}.
func DecodeQueryMsg(data []byte) (QueryMsg, error) {
	tag, body, err := splitTagged(data)
	if err != nil {
		return nil, err
	}
	var msg QueryMsg
	switch tag {
	case "solved":
		m := SolvedQuery{}
		err = decodeBody(tag, body, &m)
		msg = m
	case "admins":
		m := AdminsQuery{}
		err = decodeBody(tag, body, &m)
		msg = m
	case "winners":
		m := WinnersQuery{}
		err = decodeBody(tag, body, &m)
		msg = m
	case "verify":
		m := VerifyQuery{}
		err = decodeBody(tag, body, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: query %q", ErrUnknownMessage, tag)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// EncodeHandleMsg renders msg in its tagged wire form.
func EncodeHandleMsg(msg HandleMsg) ([]byte, error) {
	if msg == nil {
		return nil, ErrUnknownMessage
	}
	return json.Marshal(map[string]HandleMsg{msg.handleTag(): msg})
}

// EncodeQueryMsg renders msg in its tagged wire form.
func EncodeQueryMsg(msg QueryMsg) ([]byte, error) {
	if msg == nil {
		return nil, ErrUnknownMessage
	}
	return json.Marshal(map[string]QueryMsg{msg.queryTag(): msg})
}

// EncodeAnswer marshals an answer and pads it with trailing spaces to a
// multiple of AnswerBlockSize. Trailing whitespace is valid JSON.
func EncodeAnswer(answer interface{}) ([]byte, error) {
	data, err := json.Marshal(answer)
	if err != nil {
		return nil, err
	}
	return padToBlock(data, AnswerBlockSize), nil
}

func padToBlock(data []byte, blockSize int) []byte {
	if blockSize <= 0 {
		return data
	}
	remainder := len(data) % blockSize
	if remainder == 0 {
		return data
	}
	return append(data, bytes.Repeat([]byte(" "), blockSize-remainder)...)
}
