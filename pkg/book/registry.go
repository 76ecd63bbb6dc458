package book

import "sync"

// Registry owns the per-symbol books of a process. Only the symbol map
// is guarded; the books themselves stay single-writer, so all access to
// one book must still be serialized by whoever pulled it out.
type Registry struct {
	mu    sync.RWMutex
	books map[string]*LimitOrderBook
}

func NewRegistry() *Registry {
	return &Registry{
		books: make(map[string]*LimitOrderBook),
	}
}

func (r *Registry) GetOrCreate(symbol string) *LimitOrderBook {
	r.mu.RLock()
	b, ok := r.books[symbol]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.books[symbol]; ok {
		return b
	}
	b = New(symbol)
	r.books[symbol] = b
	return b
}

func (r *Registry) Get(symbol string) (*LimitOrderBook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[symbol]
	return b, ok
}

func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	symbols := make([]string, 0, len(r.books))
	for s := range r.books {
		symbols = append(symbols, s)
	}
	return symbols
}
