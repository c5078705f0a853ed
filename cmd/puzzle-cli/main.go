package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"puzzlechain/core/types"
	"puzzlechain/crypto"
	"puzzlechain/native/puzzle"
)

const defaultKeyFile = "wallet.key"

var rpcEndpoint = defaultRPCEndpoint()
var rpcAuthToken = os.Getenv("PUZZLE_RPC_TOKEN")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		printUsage(stdout)
		return 1
	}

	command, rest := args[0], args[1:]
	switch command {
	case "generate-key":
		err = generateKey(stdout, rest)
	case "address":
		err = showAddress(stdout, rest)
	case "status":
		err = printCall(stdout, "puzzle_status")
	case "nonce":
		if len(rest) != 1 {
			err = fmt.Errorf("usage: nonce <address>")
			break
		}
		err = printCall(stdout, "puzzle_getNonce", rest[0])
	case "tx":
		err = runTx(stdout, rest)
	case "solve":
		err = runSolve(stdout, rest)
	case "query":
		err = runQuery(stdout, rest)
	case "sign-permit":
		err = runSignPermit(stdout, rest)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n", command)
		printUsage(stdout)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("PUZZLE_RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8545"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func generateKey(stdout io.Writer, args []string) error {
	fs := flag.NewFlagSet("generate-key", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	out := fs.String("out", defaultKeyFile, "File to write the private key to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*out); err == nil {
		return fmt.Errorf("%s already exists; refusing to overwrite", *out)
	}

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, key.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to save key to %s: %w", *out, err)
	}
	fmt.Fprintf(stdout, "Generated new key and saved to %s\n", *out)
	fmt.Fprintf(stdout, "Your address is: %s\n", key.PubKey().Address().String())
	return nil
}

func showAddress(stdout io.Writer, args []string) error {
	path := defaultKeyFile
	if len(args) > 0 {
		path = args[0]
	}
	key, err := loadPrivateKey(path)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, key.PubKey().Address().String())
	return nil
}

// runTx signs an arbitrary tagged handle message, e.g.
// tx wallet.key '{"add_admins":{"admins":["pzl1..."]}}'.
func runTx(stdout io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: tx <key_file> <message_json>")
	}
	msg, err := puzzle.DecodeHandleMsg([]byte(args[1]))
	if err != nil {
		return err
	}
	return submit(stdout, args[0], msg)
}

func runSolve(stdout io.Writer, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: solve <key_file> <puzzle_id> <keyphrase>")
	}
	return submit(stdout, args[0], puzzle.SolveMsg{Solution: puzzle.Keyphrase{Puzzle: args[1], Keyphrase: args[2]}})
}

func submit(stdout io.Writer, keyFile string, msg puzzle.HandleMsg) error {
	key, err := loadPrivateKey(keyFile)
	if err != nil {
		return err
	}
	status, err := fetchStatus()
	if err != nil {
		return err
	}
	nonce, err := fetchNonce(key.PubKey().Address().String())
	if err != nil {
		return err
	}
	tx, err := buildTransaction(key, status.ChainID, nonce, msg)
	if err != nil {
		return err
	}
	result, err := callRPC("puzzle_execute", tx)
	if err != nil {
		return err
	}
	printJSONResult(stdout, result)
	return nil
}

func buildTransaction(key *crypto.PrivateKey, chainID string, nonce uint64, msg puzzle.HandleMsg) (*types.Transaction, error) {
	payload, err := puzzle.EncodeHandleMsg(msg)
	if err != nil {
		return nil, err
	}
	tx := &types.Transaction{ChainID: chainID, Nonce: nonce, Msg: payload}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return tx, nil
}

type nodeStatus struct {
	ChainID  string `json:"chainId"`
	Contract string `json:"contract"`
}

func fetchStatus() (*nodeStatus, error) {
	raw, err := callRPC("puzzle_status")
	if err != nil {
		return nil, err
	}
	var status nodeStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// runQuery sends a tagged query message, e.g. query '{"solved":{}}'.
func runQuery(stdout io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: query <query_json>")
	}
	if _, err := puzzle.DecodeQueryMsg([]byte(args[0])); err != nil {
		return err
	}
	result, err := callRPC("puzzle_query", json.RawMessage(args[0]))
	if err != nil {
		return err
	}
	printJSONResult(stdout, result)
	return nil
}

// runSignPermit prints a permit signed by the key file holder. Chain id and
// contract default to the connected node's.
func runSignPermit(stdout io.Writer, args []string) error {
	fs := flag.NewFlagSet("sign-permit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "Permit name")
	chainID := fs.String("chain-id", "", "Chain id (defaults to the node's)")
	contract := fs.String("contract", "", "Contract address (defaults to the node's)")
	perms := fs.String("permissions", string(puzzle.PermissionOwner), "Comma separated permissions")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || strings.TrimSpace(*name) == "" {
		return fmt.Errorf("usage: sign-permit --name <name> [--chain-id id] [--contract addr] <key_file>")
	}
	key, err := loadPrivateKey(fs.Arg(0))
	if err != nil {
		return err
	}
	if *chainID == "" || *contract == "" {
		status, err := fetchStatus()
		if err != nil {
			return err
		}
		if *chainID == "" {
			*chainID = status.ChainID
		}
		if *contract == "" {
			*contract = status.Contract
		}
	}
	params := puzzle.PermitParams{
		PermitName:    *name,
		ChainID:       *chainID,
		AllowedTokens: []string{*contract},
	}
	for _, p := range strings.Split(*perms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			params.Permissions = append(params.Permissions, puzzle.Permission(p))
		}
	}
	permit, err := puzzle.SignPermit(params, key.PrivateKey)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(permit)
	if err != nil {
		return err
	}
	printJSONResult(stdout, encoded)
	return nil
}

func printCall(stdout io.Writer, method string, params ...interface{}) error {
	result, err := callRPC(method, params...)
	if err != nil {
		return err
	}
	printJSONResult(stdout, result)
	return nil
}

func loadPrivateKey(path string) (*crypto.PrivateKey, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("private key file %s not found. run puzzle-cli generate-key first", path)
		}
		return nil, fmt.Errorf("failed to read private key file %s: %w", path, err)
	}
	if len(keyBytes) == 0 {
		return nil, fmt.Errorf("private key file %s is empty", path)
	}
	privKey, err := crypto.PrivateKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key in %s: %w", path, err)
	}
	return privKey, nil
}

func printJSONResult(stdout io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(stdout, "No result.")
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		fmt.Fprintln(stdout, string(result))
		return
	}
	fmt.Fprintln(stdout, buf.String())
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: puzzle-cli [--rpc <url>] <command> [args]

Commands:
  generate-key [--out file]                  Create a new private key file
  address [key_file]                         Print the address of a key file
  status                                     Show the node's chain and head
  nonce <address>                            Show the next nonce for an address
  solve <key_file> <puzzle_id> <keyphrase>   Submit a solution
  tx <key_file> <message_json>               Sign and submit any handle message
  query <query_json>                         Run a query, e.g. '{"solved":{}}'
  sign-permit --name <name> <key_file>       Sign a query permit

Environment:
  PUZZLE_RPC_URL    node endpoint (default http://localhost:8545)
  PUZZLE_RPC_TOKEN  bearer token sent with every request`)
}
