package routing

import (
	"fmt"
	"sort"
)

// Credential identifies a backend account on the token-exchange endpoint.
type Credential struct {
	// ClientID is the OAuth client identifier
	ClientID string

	// ClientSecret is the OAuth client secret
	ClientSecret string

	// TokenEndpoint is the client-credentials token URL
	TokenEndpoint string

	// TenantID is sent to the backend as the tenant header
	TenantID string
}

// Account is one isolated backend account: a credential plus the deployments
// it hosts. Accounts are never removed at runtime; only the credential
// cache's token entry for an account changes after startup.
type Account struct {
	// Name is the unique account identifier
	Name string

	// ResourceGroup is sent to the backend as the resource-group header
	ResourceGroup string

	// Credential authenticates outbound calls for this account
	Credential Credential

	// Deployments maps a model name to the base URLs of its live
	// deployments within this account
	Deployments map[string][]string
}

// Table is the immutable routing state. Built once from configuration;
// a reload builds a new Table.
type Table struct {
	accounts map[string]*Account

	// modelAccounts is the derived model -> account-names index, each
	// slice sorted for deterministic rotation order.
	modelAccounts map[string][]string
}

// NewTable builds a Table from the given accounts and derives the
// model-to-accounts index.
func NewTable(accounts []*Account) (*Table, error) {
	t := &Table{
		accounts:      make(map[string]*Account, len(accounts)),
		modelAccounts: make(map[string][]string),
	}

	for _, account := range accounts {
		if account.Name == "" {
			return nil, fmt.Errorf("account with empty name")
		}
		if _, exists := t.accounts[account.Name]; exists {
			return nil, fmt.Errorf("duplicate account name %q", account.Name)
		}
		if len(account.Deployments) == 0 {
			return nil, fmt.Errorf("account %q has no deployments", account.Name)
		}
		for model, urls := range account.Deployments {
			if len(urls) == 0 {
				return nil, fmt.Errorf("account %q: model %q has no deployment URLs", account.Name, model)
			}
			t.modelAccounts[model] = append(t.modelAccounts[model], account.Name)
		}
		t.accounts[account.Name] = account
	}

	for _, names := range t.modelAccounts {
		sort.Strings(names)
	}

	return t, nil
}

// Account returns the named account.
func (t *Table) Account(name string) (*Account, bool) {
	account, ok := t.accounts[name]
	return account, ok
}

// AccountsFor returns the names of accounts serving the given model, in
// deterministic order. Empty when the model is not in the table.
func (t *Table) AccountsFor(model string) []string {
	return t.modelAccounts[model]
}

// HasModel reports whether any account serves the given model.
func (t *Table) HasModel(model string) bool {
	return len(t.modelAccounts[model]) > 0
}

// Models returns every model name in the table, sorted.
func (t *Table) Models() []string {
	models := make([]string, 0, len(t.modelAccounts))
	for model := range t.modelAccounts {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// Accounts returns every account, ordered by name.
func (t *Table) Accounts() []*Account {
	names := make([]string, 0, len(t.accounts))
	for name := range t.accounts {
		names = append(names, name)
	}
	sort.Strings(names)

	accounts := make([]*Account, 0, len(names))
	for _, name := range names {
		accounts = append(accounts, t.accounts[name])
	}
	return accounts
}
