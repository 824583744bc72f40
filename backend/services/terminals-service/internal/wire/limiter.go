package wire

import (
	"sync"

	"golang.org/x/time/rate"
)

// ClientLimiter stores a token bucket for each connected client.
type ClientLimiter struct {
	clients map[string]*rate.Limiter
	mu      sync.RWMutex
	r       rate.Limit
	b       int
}

// NewClientLimiter allows r commands per second with bursts of b per client.
func NewClientLimiter(r rate.Limit, b int) *ClientLimiter {
	if b <= 0 {
		b = 1
	}
	return &ClientLimiter{
		clients: make(map[string]*rate.Limiter),
		r:       r,
		b:       b,
	}
}

// Allow consumes one token of clientID's bucket.
func (l *ClientLimiter) Allow(clientID string) bool {
	return l.limiter(clientID).Allow()
}

// Remove drops clientID's bucket.
func (l *ClientLimiter) Remove(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, clientID)
}

func (l *ClientLimiter) limiter(clientID string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.clients[clientID]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists = l.clients[clientID]; !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.clients[clientID] = limiter
	}
	return limiter
}
