package policy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/redline/internal/model"
)

// validDomain matches lower-case alphanumeric, dash, and underscore only.
var validDomain = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ErrNoPolicy is wrapped in the ConfigurationError returned for unknown domains.
var ErrNoPolicy = errors.New("no policy for domain")

// Store loads and caches domain policies. It checks the configured
// directory first (<domain>.yaml, <domain>.yml or <domain>_policy.yaml),
// then the built-in policies.
type Store struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]*Policy
}

// NewStore creates a Store. An empty dir uses built-in policies only.
func NewStore(dir string) *Store {
	return &Store{dir: dir, cache: make(map[string]*Policy)}
}

// Dir returns the policy directory, or "" when only built-ins are used.
func (s *Store) Dir() string { return s.dir }

// Load returns the policy for domain. Failures are *model.ConfigurationError.
func (s *Store) Load(domain string) (*Policy, error) {
	if !validDomain.MatchString(domain) {
		return nil, &model.ConfigurationError{Domain: domain, Err: fmt.Errorf("invalid domain name")}
	}

	s.mu.RLock()
	p, ok := s.cache[domain]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	data, err := s.read(domain)
	if err != nil {
		return nil, &model.ConfigurationError{Domain: domain, Err: err}
	}
	p, err = Parse(domain, data)
	if err != nil {
		return nil, &model.ConfigurationError{Domain: domain, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A concurrent Load may have won; keep the first so callers share one value.
	if cached, ok := s.cache[domain]; ok {
		return cached, nil
	}
	s.cache[domain] = p
	return p, nil
}

// Reload drops every cached policy so the next Load re-reads its source.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Policy)
}

// Domains returns sorted names of all available policies (built-in + directory).
func (s *Store) Domains() []string {
	seen := make(map[string]bool)
	for name := range builtinPolicies {
		seen[name] = true
	}

	if s.dir != "" {
		entries, err := os.ReadDir(s.dir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				if name, ok := domainFromFile(e.Name()); ok {
					seen[name] = true
				}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) read(domain string) ([]byte, error) {
	if s.dir != "" {
		for _, name := range []string{domain + ".yaml", domain + ".yml", domain + "_policy.yaml"} {
			data, err := os.ReadFile(filepath.Join(s.dir, name))
			if err == nil {
				return data, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read policy file: %w", err)
			}
		}
	}

	if data, ok := builtinPolicies[domain]; ok {
		return data, nil
	}
	return nil, ErrNoPolicy
}

func domainFromFile(name string) (string, bool) {
	ext := filepath.Ext(name)
	if ext != ".yaml" && ext != ".yml" {
		return "", false
	}
	base := strings.TrimSuffix(strings.TrimSuffix(name, ext), "_policy")
	if !validDomain.MatchString(base) {
		return "", false
	}
	return base, true
}
