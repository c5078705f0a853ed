package state

import (
	"errors"
	"fmt"
	"math"
)

// StateVersion is the layout this binary reads and writes. Version 1 keeps
// each puzzle under its own key with an ordered id index beside it.
const StateVersion uint32 = 1

var (
	stateVersionKey = []byte("state/version")

	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
)

// SetStateVersion stamps the layout version into state.
func (m *Manager) SetStateVersion(version uint32) error {
	return m.KVPut(stateVersionKey, uint64(version))
}

// StateVersion returns the stamped layout version; ok is false when state
// has never been stamped.
func (m *Manager) StateVersion() (version uint32, ok bool, err error) {
	var stored uint64
	ok, err = m.KVGet(stateVersionKey, &stored)
	if err != nil || !ok {
		return 0, ok, err
	}
	if stored > math.MaxUint32 {
		return 0, false, fmt.Errorf("state: schema version overflow: %d", stored)
	}
	return uint32(stored), true, nil
}

// CheckStateVersion fails unless state carries exactly StateVersion. Unstamped
// state counts as version 0.
func (m *Manager) CheckStateVersion() error {
	version, _, err := m.StateVersion()
	if err != nil {
		return err
	}
	if version != StateVersion {
		return fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, version, StateVersion)
	}
	return nil
}
