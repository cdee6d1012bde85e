package static

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/oauth-pkce/storage"
)

// ClientConfig is one client entry of the clients file
type ClientConfig struct {
	ClientID         string   `yaml:"client_id" validate:"required"`
	ClientSecret     string   `yaml:"client_secret" validate:"required_without=ClientSecretHash"`
	ClientSecretHash string   `yaml:"client_secret_hash" validate:"required_without=ClientSecret"`
	DisplayName      string   `yaml:"display_name"`
	RedirectURIs     []string `yaml:"redirect_uris" validate:"required,min=1,dive,required,url"`
}

// File is the top-level structure of the clients file
type File struct {
	Clients []ClientConfig `yaml:"clients" validate:"required,min=1,unique=ClientID,dive"`
}

// Registry is an immutable, concurrency-safe client registry
type Registry struct {
	clients   map[string]*storage.Client
	dummyHash []byte
	logger    *slog.Logger
}

var _ storage.ClientRegistry = (*Registry)(nil)

// NewValidator returns a validator that reports field names by their yaml tag
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// LoadFile reads, expands and validates a clients file
func LoadFile(path string, logger *slog.Logger) (*Registry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clients file: %w", err)
	}

	registry, err := Parse(content, logger)
	if err != nil {
		return nil, fmt.Errorf("load clients file %s: %w", path, err)
	}
	return registry, nil
}

// Parse builds a registry from clients file content
func Parse(content []byte, logger *slog.Logger) (*Registry, error) {
	expanded := os.ExpandEnv(string(content))

	var file File
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, fmt.Errorf("decode clients file: %w", err)
	}

	if err := NewValidator().Struct(&file); err != nil {
		return nil, fmt.Errorf("validate clients file: %w", err)
	}

	clients := make([]*storage.Client, 0, len(file.Clients))
	for _, c := range file.Clients {
		hash := c.ClientSecretHash
		if hash == "" {
			var err error
			hash, err = HashSecret(c.ClientSecret)
			if err != nil {
				return nil, fmt.Errorf("hash secret of client %q: %w", c.ClientID, err)
			}
		} else if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("client %q: client_secret_hash is not a bcrypt hash: %w", c.ClientID, err)
		}

		clients = append(clients, &storage.Client{
			ClientID:         c.ClientID,
			ClientSecretHash: hash,
			RedirectURIs:     c.RedirectURIs,
			DisplayName:      c.DisplayName,
		})
	}

	return NewRegistry(clients, logger)
}

// NewRegistry builds a registry from client records. Records are copied;
// an empty DisplayName defaults to the client ID.
func NewRegistry(clients []*storage.Client, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dummyHash, err := bcrypt.GenerateFromPassword([]byte("unknown-client"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	r := &Registry{
		clients:   make(map[string]*storage.Client, len(clients)),
		dummyHash: dummyHash,
		logger:    logger,
	}

	for _, c := range clients {
		if c == nil || c.ClientID == "" {
			return nil, fmt.Errorf("%w: client without client_id", storage.ErrInvalidRecord)
		}
		if _, exists := r.clients[c.ClientID]; exists {
			return nil, fmt.Errorf("duplicate client_id %q", c.ClientID)
		}

		clientCopy := *c
		clientCopy.RedirectURIs = append([]string(nil), c.RedirectURIs...)
		if clientCopy.DisplayName == "" {
			clientCopy.DisplayName = clientCopy.ClientID
		}
		r.clients[c.ClientID] = &clientCopy

		logger.Debug("Registered client",
			"client_id", c.ClientID,
			"redirect_uris", len(c.RedirectURIs))
	}

	return r, nil
}

// GetClient returns a copy of the registration for clientID
func (r *Registry) GetClient(_ context.Context, clientID string) (*storage.Client, error) {
	client, ok := r.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrClientNotFound, clientID)
	}

	clientCopy := *client
	clientCopy.RedirectURIs = append([]string(nil), client.RedirectURIs...)
	return &clientCopy, nil
}

// ValidateClientSecret compares clientSecret with the stored bcrypt hash.
// SECURITY: a bcrypt comparison runs even for unknown clients so response
// timing does not reveal which client IDs exist.
func (r *Registry) ValidateClientSecret(_ context.Context, clientID, clientSecret string) error {
	hashToCompare := r.dummyHash
	client, found := r.clients[clientID]
	if found {
		hashToCompare = []byte(client.ClientSecretHash)
	}

	bcryptErr := bcrypt.CompareHashAndPassword(hashToCompare, []byte(clientSecret))

	if !found {
		return fmt.Errorf("%w: %s", storage.ErrClientNotFound, clientID)
	}
	if bcryptErr != nil {
		return storage.ErrInvalidClientSecret
	}
	return nil
}

// Len returns the number of registered clients
func (r *Registry) Len() int {
	return len(r.clients)
}

// HashSecret returns the bcrypt hash of a client secret
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("empty secret")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
