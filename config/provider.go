package config

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Provider holds the last successfully loaded and validated Document for
// a YAML config file, and can watch that file for further changes.
type Provider struct {
	mu   sync.RWMutex
	doc  Document
	path string
}

// Load reads, parses, and validates the YAML document at path.
func Load(path string) (*Provider, error) {
	doc, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	return &Provider{doc: doc, path: path}, nil
}

func parseFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if errs := Validate(doc); len(errs) > 0 {
		return Document{}, fmt.Errorf("config: %d validation error(s), first: %w", len(errs), errs[0])
	}
	return doc, nil
}

// Document returns the most recently loaded, valid document.
func (p *Provider) Document() Document {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc
}

// CircuitBreaker returns the named circuit breaker block, if present.
func (p *Provider) CircuitBreaker(name string) (CircuitBreakerBlock, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.doc.CircuitBreakers[name]
	return b, ok
}

// RateLimiter returns the named rate limiter block, if present.
func (p *Provider) RateLimiter(name string) (RateLimiterBlock, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.doc.RateLimiters[name]
	return b, ok
}

// Bulkhead returns the named bulkhead block, if present.
func (p *Provider) Bulkhead(name string) (BulkheadBlock, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.doc.Bulkheads[name]
	return b, ok
}

// Retry returns the named retry block, if present.
func (p *Provider) Retry(name string) (RetryBlock, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.doc.Retries[name]
	return b, ok
}

// Watch starts an fsnotify watch on the provider's backing file and
// pushes each successfully re-parsed, re-validated Document onto the
// returned channel as it changes. A write that fails to parse or
// validate is logged-worthy but otherwise ignored, leaving Document()
// returning the last good snapshot. The channel is closed when ctx is
// done or the watch can no longer continue.
func (p *Provider) Watch(ctx context.Context) (<-chan Document, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: starting watcher: %w", err)
	}
	if err := watcher.Add(p.path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watching %s: %w", p.path, err)
	}

	out := make(chan Document)
	go func() {
		defer watcher.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				doc, err := parseFile(p.path)
				if err != nil {
					continue
				}
				p.mu.Lock()
				p.doc = doc
				p.mu.Unlock()
				select {
				case out <- doc:
				case <-ctx.Done():
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return out, nil
}
