package puzzle

import (
	"fmt"
	"strings"

	"puzzlechain/crypto"
)

// ViewerInfo is the address and viewing key making an authenticated query.
type ViewerInfo struct {
	Address    string `json:"address"`
	ViewingKey string `json:"viewing_key"`
}

// Credential carries the authentication material of a query. When Permit is
// set the viewer is ignored entirely, even if the permit turns out invalid.
type Credential struct {
	Viewer *ViewerInfo
	Permit *Permit
}

// Method names the credential form that will be evaluated.
func (c Credential) Method() string {
	switch {
	case c.Permit != nil:
		return "permit"
	case c.Viewer != nil:
		return "viewing_key"
	default:
		return "none"
	}
}

// Authenticate resolves cred to a verified address holding the required
// permission.
func Authenticate(store ReadStore, cred Credential, required Permission) (Address, error) {
	if store == nil {
		return Address{}, errNilStore
	}
	creds := credentialView{store: store}
	if cred.Permit != nil {
		cfg, err := loadConfig(store)
		if err != nil {
			return Address{}, err
		}
		owner, err := validatePermit(creds, cfg, cred.Permit)
		if err != nil {
			return Address{}, err
		}
		if !cred.Permit.HasPermission(required) {
			return Address{}, fmt.Errorf("%w: %s permission required, got %v", ErrUnauthorized, required, cred.Permit.Params.Permissions)
		}
		return owner, nil
	}
	if cred.Viewer != nil {
		addr, err := crypto.ParseAddress(strings.TrimSpace(cred.Viewer.Address))
		if err != nil {
			return Address{}, fmt.Errorf("%w: viewer address: %v", ErrUnauthorized, err)
		}
		ok, err := creds.verifyViewingKey(addr.Raw(), cred.Viewer.ViewingKey)
		if err != nil {
			return Address{}, err
		}
		if !ok {
			return Address{}, ErrUnauthorized
		}
		return addr.Raw(), nil
	}
	return Address{}, ErrUnauthorized
}

// authenticateAdmin authenticates cred with owner permission and requires the
// resolved address to be an admin.
func authenticateAdmin(store ReadStore, cred Credential) (Address, error) {
	addr, err := Authenticate(store, cred, PermissionOwner)
	if err != nil {
		return Address{}, err
	}
	if err := (adminView{store: store}).requireAdmin(addr); err != nil {
		return Address{}, err
	}
	return addr, nil
}
