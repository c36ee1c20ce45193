package domain

import "sort"

// WalletState is the account book of the keyring: every account grouped by
// type, the active account cursor, the active network and the network
// catalog. It is mutated only through the keyring service, which serializes
// access.
type WalletState struct {
	Accounts          map[AccountType]map[int]*Account   `json:"accounts"`
	ActiveAccountId   int                                `json:"activeAccountId"`
	ActiveAccountType AccountType                        `json:"activeAccountType"`
	ActiveNetwork     *Network                           `json:"activeNetwork"`
	Networks          map[ChainFamily]map[string]*Network `json:"networks"`
}

// NewWalletState returns a wallet state with empty account books, the given
// active network and the network catalog grouped by family.
func NewWalletState(activeNetwork *Network, networks []*Network) *WalletState {
	catalog := make(map[ChainFamily]map[string]*Network)
	for _, net := range networks {
		if catalog[net.ChainFamily] == nil {
			catalog[net.ChainFamily] = make(map[string]*Network)
		}
		catalog[net.ChainFamily][net.Name] = net
	}
	return &WalletState{
		Accounts:      make(map[AccountType]map[int]*Account),
		ActiveNetwork: activeNetwork,
		Networks:      catalog,
	}
}

// AccountsOfType returns the accounts of the given type, possibly empty.
func (s *WalletState) AccountsOfType(accountType AccountType) map[int]*Account {
	return s.Accounts[accountType]
}

// NextAccountId returns the id a new account of the given type gets, that is
// the count of existing accounts of that type.
func (s *WalletState) NextAccountId(accountType AccountType) int {
	return len(s.Accounts[accountType])
}

// AddAccount inserts the account in the book of its type. An account whose
// address already appears anywhere in the book, whatever its type, is
// rejected and the state is left untouched.
func (s *WalletState) AddAccount(account *Account) error {
	if _, _, ok := s.FindAccountByAddress(account.Address); ok {
		return ErrAccountAlreadyExists
	}

	accountType := account.Type()
	if s.Accounts[accountType] == nil {
		s.Accounts[accountType] = make(map[int]*Account)
	}
	s.Accounts[accountType][account.Id] = account
	return nil
}

// GetAccount returns the account with the given type and id.
func (s *WalletState) GetAccount(accountType AccountType, id int) (*Account, error) {
	account, ok := s.Accounts[accountType][id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// ActiveAccount returns the account the active cursor points to.
func (s *WalletState) ActiveAccount() (*Account, error) {
	return s.GetAccount(s.ActiveAccountType, s.ActiveAccountId)
}

// SetActiveAccount moves the active cursor to the given account.
func (s *WalletState) SetActiveAccount(accountType AccountType, id int) error {
	if _, err := s.GetAccount(accountType, id); err != nil {
		return err
	}
	s.ActiveAccountType = accountType
	s.ActiveAccountId = id
	return nil
}

// FindAccountByAddress scans all the account books for the given address.
func (s *WalletState) FindAccountByAddress(address string) (*Account, AccountType, bool) {
	if len(address) <= 0 {
		return nil, 0, false
	}
	for _, accountType := range AccountTypes {
		for _, account := range s.Accounts[accountType] {
			if account.Address == address {
				return account, accountType, true
			}
		}
	}
	return nil, 0, false
}

// AllAccounts returns every account sorted by type and id.
func (s *WalletState) AllAccounts() []*Account {
	accounts := make([]*Account, 0)
	for _, accountType := range AccountTypes {
		ids := make([]int, 0, len(s.Accounts[accountType]))
		for id := range s.Accounts[accountType] {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			accounts = append(accounts, s.Accounts[accountType][id])
		}
	}
	return accounts
}

// NetworkByName returns the catalog entry with the given family and name.
func (s *WalletState) NetworkByName(family ChainFamily, name string) (*Network, error) {
	net, ok := s.Networks[family][name]
	if !ok {
		return nil, ErrNetworkNotFound
	}
	return net, nil
}

// AddNetwork inserts or replaces a catalog entry.
func (s *WalletState) AddNetwork(net *Network) {
	if s.Networks[net.ChainFamily] == nil {
		s.Networks[net.ChainFamily] = make(map[string]*Network)
	}
	s.Networks[net.ChainFamily][net.Name] = net
}

// RemoveNetwork drops a catalog entry. Removing the active network is
// rejected.
func (s *WalletState) RemoveNetwork(family ChainFamily, name string) error {
	if _, err := s.NetworkByName(family, name); err != nil {
		return err
	}
	if s.ActiveNetwork != nil &&
		s.ActiveNetwork.ChainFamily == family && s.ActiveNetwork.Name == name {
		return ErrRemoveActiveNetwork
	}
	delete(s.Networks[family], name)
	return nil
}

// AllNetworks returns the catalog entries sorted by family and name.
func (s *WalletState) AllNetworks() []*Network {
	networks := make([]*Network, 0)
	for _, family := range []ChainFamily{UtxoChainFamily, EvmChainFamily} {
		names := make([]string, 0, len(s.Networks[family]))
		for name := range s.Networks[family] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			networks = append(networks, s.Networks[family][name])
		}
	}
	return networks
}

// Snapshot returns a deep copy of the state, used to restore it verbatim
// when a multi-step mutation fails halfway.
func (s *WalletState) Snapshot() *WalletState {
	accounts := make(map[AccountType]map[int]*Account, len(s.Accounts))
	for accountType, book := range s.Accounts {
		cloned := make(map[int]*Account, len(book))
		for id, account := range book {
			cloned[id] = account.Clone()
		}
		accounts[accountType] = cloned
	}

	networks := make(map[ChainFamily]map[string]*Network, len(s.Networks))
	for family, catalog := range s.Networks {
		cloned := make(map[string]*Network, len(catalog))
		for name, net := range catalog {
			cloned[name] = net.Clone()
		}
		networks[family] = cloned
	}

	var activeNetwork *Network
	if s.ActiveNetwork != nil {
		activeNetwork = s.ActiveNetwork.Clone()
	}

	return &WalletState{
		Accounts:          accounts,
		ActiveAccountId:   s.ActiveAccountId,
		ActiveAccountType: s.ActiveAccountType,
		ActiveNetwork:     activeNetwork,
		Networks:          networks,
	}
}
