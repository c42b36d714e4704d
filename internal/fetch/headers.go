package fetch

import (
	"math/rand"
	"net/http"
	"sync"
)

// defaultAgent is used when the configured user-agent pool is empty.
const defaultAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HeaderPool rotates realistic browser headers across requests so that
// consecutive fetches do not share one signature.
type HeaderPool struct {
	mu     sync.Mutex
	agents []string
}

// NewHeaderPool wires the user-agent pool loaded from the configuration
// store. Blank entries are dropped.
func NewHeaderPool(agents []string) *HeaderPool {
	pool := &HeaderPool{}
	for _, agent := range agents {
		if agent != "" {
			pool.agents = append(pool.agents, agent)
		}
	}
	return pool
}

// Apply sets a randomized user agent plus standard browser-like headers.
// The referer is derived from the request's own origin.
func (p *HeaderPool) Apply(req *http.Request) {
	req.Header.Set("User-Agent", p.pick())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
	if req.URL != nil && req.URL.Host != "" {
		req.Header.Set("Referer", req.URL.Scheme+"://"+req.URL.Host+"/")
	}
}

func (p *HeaderPool) pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.agents) == 0 {
		return defaultAgent
	}
	return p.agents[rand.Intn(len(p.agents))]
}
