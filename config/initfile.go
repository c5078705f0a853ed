package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"puzzlechain/native/puzzle"
)

// LoadInitFile reads the contract instantiation message from a YAML file:
//
//	entropy: "some random string"
//	admins: [pzl1...]
//	keyphrases:
//	  - puzzle: p1
//	    keyphrase: banana split
func LoadInitFile(path string) (*puzzle.InitMsg, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var msg puzzle.InitMsg
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("init file %s: %w", path, err)
	}
	if strings.TrimSpace(msg.Entropy) == "" {
		return nil, fmt.Errorf("init file %s: entropy required", path)
	}
	return &msg, nil
}
