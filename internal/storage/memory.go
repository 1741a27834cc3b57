// Package storage provides the shared memory store and the messaging store
// for swarm sessions. Memory entries are persisted per namespace; messages
// additionally land in a per-session JSONL file and are mirrored into the
// session's event log.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/valter-silva-au/swarmwatch/pkg/models"
	"gopkg.in/yaml.v3"
)

// MemoryEntry is one stored value with its visibility scope.
type MemoryEntry struct {
	Key       string            `yaml:"key"`
	Scope     models.ShareScope `yaml:"scope"`
	UpdatedAt time.Time         `yaml:"updated_at"`
	Value     any               `yaml:"value"`
}

// MemoryStore is the shared key/value memory consumed by the messaging
// store. Values are opaque; only that they serialize is validated. The
// store's own persistence engine is an external concern behind this
// interface.
type MemoryStore interface {
	Store(namespace, key string, value any, scope models.ShareScope) error
	Retrieve(namespace, key string) (*MemoryEntry, error)
	List(namespace string) ([]MemoryEntry, error)
}

// namespaceDoc is the on-disk shape of one namespace file.
type namespaceDoc struct {
	Version string        `yaml:"version"`
	Entries []MemoryEntry `yaml:"entries"`
}

type fileMemoryStore struct {
	basePath string
	mu       sync.Mutex
}

// NewFileMemoryStore creates a MemoryStore backed by one YAML file per
// namespace under memory/ in the given base directory.
func NewFileMemoryStore(basePath string) MemoryStore {
	return &fileMemoryStore{basePath: basePath}
}

func (s *fileMemoryStore) memoryDir() string {
	return filepath.Join(s.basePath, "memory")
}

var namespacePattern = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// sanitizeNamespace maps a namespace like "swarm:session-1" to a safe
// filename component.
func sanitizeNamespace(namespace string) string {
	sanitized := namespacePattern.ReplaceAllString(namespace, "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		sanitized = "default"
	}
	return sanitized
}

func (s *fileMemoryStore) namespacePath(namespace string) string {
	return filepath.Join(s.memoryDir(), sanitizeNamespace(namespace)+".yaml")
}

func (s *fileMemoryStore) load(namespace string) (*namespaceDoc, error) {
	doc := &namespaceDoc{Version: "1.0"}

	data, err := os.ReadFile(s.namespacePath(namespace)) //nolint:gosec // G304: reading namespace files from managed directory
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, fmt.Errorf("reading namespace %s: %w", namespace, err)
	}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parsing namespace %s: %w", namespace, err)
	}
	return doc, nil
}

func (s *fileMemoryStore) save(namespace string, doc *namespaceDoc) error {
	if err := os.MkdirAll(s.memoryDir(), 0o755); err != nil {
		return fmt.Errorf("creating memory dir: %w", err)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding namespace %s: %w", namespace, err)
	}
	if err := os.WriteFile(s.namespacePath(namespace), data, 0o600); err != nil {
		return fmt.Errorf("writing namespace %s: %w", namespace, err)
	}
	return nil
}

// Store persists a value under namespace and key. The last write for a key
// wins. Entries are kept sorted by key so namespace files are deterministic.
func (s *fileMemoryStore) Store(namespace, key string, value any, scope models.ShareScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(namespace)
	if err != nil {
		return fmt.Errorf("storing %s/%s: %w", namespace, key, err)
	}

	entry := MemoryEntry{
		Key:       key,
		Scope:     scope,
		UpdatedAt: time.Now().UTC(),
		Value:     value,
	}

	replaced := false
	for i := range doc.Entries {
		if doc.Entries[i].Key == key {
			doc.Entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Entries = append(doc.Entries, entry)
	}
	sort.Slice(doc.Entries, func(i, j int) bool { return doc.Entries[i].Key < doc.Entries[j].Key })

	if err := s.save(namespace, doc); err != nil {
		return fmt.Errorf("storing %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Retrieve returns the entry stored under namespace and key, or nil when
// absent.
func (s *fileMemoryStore) Retrieve(namespace, key string) (*MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(namespace)
	if err != nil {
		return nil, fmt.Errorf("retrieving %s/%s: %w", namespace, key, err)
	}
	for i := range doc.Entries {
		if doc.Entries[i].Key == key {
			return &doc.Entries[i], nil
		}
	}
	return nil, nil
}

// List returns all entries in a namespace sorted by key. A missing
// namespace yields an empty list.
func (s *fileMemoryStore) List(namespace string) ([]MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(namespace)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", namespace, err)
	}
	return doc.Entries, nil
}
