package routing

import (
	"sync"
	"sync/atomic"
)

// Resolution is the outcome of resolving a model name: the concrete
// deployment a request should be sent to.
type Resolution struct {
	// Account is the backend account that owns the deployment.
	Account *Account

	// BaseURL is the chosen deployment URL.
	BaseURL string

	// Model is the final model name, after any alias fallback.
	Model string

	// Protocol is the wire encoding the deployment accepts.
	Protocol Protocol
}

// Router resolves model names against one Table, balancing across accounts
// and across a chosen account's deployment URLs with two independent
// round-robin counters.
//
// The counters are Router state, not package state: tests run in isolation
// and a configuration reload swaps in a fresh Router without disturbing
// in-flight resolutions against the old one. Counter staleness under race
// costs at most a skipped or repeated rotation slot, never a wrong account.
type Router struct {
	table *Table

	mu       sync.Mutex
	counters map[string]*atomic.Int64
}

// NewRouter creates a Router over the given table.
func NewRouter(table *Table) *Router {
	return &Router{
		table:    table,
		counters: make(map[string]*atomic.Int64),
	}
}

// Table returns the routing table this router serves.
func (r *Router) Table() *Table {
	return r.table
}

// Resolve maps a client-requested model name to a concrete deployment.
//
// Resolution order:
//  1. A name present in the table is used directly.
//  2. Otherwise the name's family fallback chain is walked; the first
//     name present in the table replaces the requested one.
//  3. No candidate: ModelNotAvailableError naming every attempt.
//  4. The serving account is picked by the model-keyed counter.
//  5. The URL within that account by the (account, model)-keyed counter.
func (r *Router) Resolve(model string) (*Resolution, error) {
	resolved := model
	if !r.table.HasModel(resolved) {
		chain := fallbackChain(model)
		resolved = ""
		for _, candidate := range chain {
			if r.table.HasModel(candidate) {
				resolved = candidate
				break
			}
		}
		if resolved == "" {
			return nil, &ModelNotAvailableError{Model: model, Attempted: chain}
		}
	}

	accountNames := r.table.AccountsFor(resolved)
	accountName := accountNames[r.next("model/"+resolved)%int64(len(accountNames))]
	account, _ := r.table.Account(accountName)

	urls := account.Deployments[resolved]
	url := urls[r.next("url/"+accountName+"/"+resolved)%int64(len(urls))]

	return &Resolution{
		Account:  account,
		BaseURL:  url,
		Model:    resolved,
		Protocol: ClassifyProtocol(resolved),
	}, nil
}

// next returns the current value of the named counter and increments it.
func (r *Router) next(key string) int64 {
	r.mu.Lock()
	counter, ok := r.counters[key]
	if !ok {
		counter = &atomic.Int64{}
		r.counters[key] = counter
	}
	r.mu.Unlock()

	return counter.Add(1) - 1
}

// Reset clears all round-robin counters. Test isolation only.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = make(map[string]*atomic.Int64)
}
