package puzzle

import "fmt"

type adminView struct {
	store ReadStore
}

func (a adminView) list() ([]Address, error) {
	var admins []Address
	if _, err := a.store.KVGet(adminsKey, &admins); err != nil {
		return nil, err
	}
	return admins, nil
}

func (a adminView) isAdmin(addr Address) (bool, error) {
	admins, err := a.list()
	if err != nil {
		return false, err
	}
	return containsAddress(admins, addr), nil
}

func (a adminView) requireAdmin(addr Address) error {
	ok, err := a.isAdmin(addr)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

type adminRegistry struct {
	adminView
	store Store
}

func newAdminRegistry(store Store) adminRegistry {
	return adminRegistry{adminView: adminView{store: store}, store: store}
}

// add appends addresses that are not yet admins and returns the resulting set.
func (r adminRegistry) add(addrs []Address) ([]Address, error) {
	admins, err := r.list()
	if err != nil {
		return nil, err
	}
	changed := false
	for _, addr := range addrs {
		if !containsAddress(admins, addr) {
			admins = append(admins, addr)
			changed = true
		}
	}
	if changed {
		if err := r.store.KVPut(adminsKey, admins); err != nil {
			return nil, err
		}
	}
	return admins, nil
}

// remove drops the supplied addresses. Unknown addresses are ignored; a removal
// that would leave no admin fails and leaves the set untouched.
func (r adminRegistry) remove(addrs []Address) ([]Address, error) {
	admins, err := r.list()
	if err != nil {
		return nil, err
	}
	kept := make([]Address, 0, len(admins))
	for _, admin := range admins {
		if !containsAddress(addrs, admin) {
			kept = append(kept, admin)
		}
	}
	if len(kept) == len(admins) {
		return admins, nil
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: cannot remove every admin", ErrInvalidOperation)
	}
	if err := r.store.KVPut(adminsKey, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

func containsAddress(list []Address, addr Address) bool {
	for _, candidate := range list {
		if candidate == addr {
			return true
		}
	}
	return false
}
