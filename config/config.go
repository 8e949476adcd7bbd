// Package config implements the on-disk YAML configuration layer: the
// local node's identity/listen settings and the cached, signed world
// roster, mirroring the teacher's CentralCfg/LocalCfg split (state/config.go)
// scaled down to what a VL1 dispatcher needs to start.
package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/xcrypto"
	"github.com/goccy/go-yaml"
)

// LocalCfg is the node-level configuration: where its identity lives, what
// port it listens on, and where its world roster cache is, mirroring the
// teacher's LocalCfg (state/config.go) scoped to this spec's dispatcher.
type LocalCfg struct {
	IdentityPath string `yaml:"identity_path"`
	WorldPath    string `yaml:"world_path"`
	Port         uint16
	LogPath      string `yaml:"log_path,omitempty"`
	Verbose      bool   `yaml:",omitempty"`
}

// LoadLocalCfg reads and parses a LocalCfg from path.
func LoadLocalCfg(path string) (*LocalCfg, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg LocalCfg
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// RootCfg is one root server entry as it appears in a world roster file,
// the YAML mirror of identity.RootEntry.
type RootCfg struct {
	Address  string
	Endpoint string
}

// WorldCfg is the on-disk form of identity.World: a signed, timestamped
// root roster, hex-encoding the address and signature fields the way
// identity.Address.String already does.
type WorldCfg struct {
	ID        uint64
	Timestamp uint64
	Roots     []RootCfg
	Signature string `yaml:",omitempty"`
}

// ToWorld converts a parsed WorldCfg into the identity.World the dispatcher
// and topology package operate on.
func (w WorldCfg) ToWorld() (identity.World, error) {
	out := identity.World{ID: w.ID, Timestamp: w.Timestamp}
	for _, r := range w.Roots {
		addr, err := identity.ParseAddress(r.Address)
		if err != nil {
			return identity.World{}, fmt.Errorf("config: root address %q: %w", r.Address, err)
		}
		out.Roots = append(out.Roots, identity.RootEntry{Address: addr, Endpoint: r.Endpoint})
	}
	if w.Signature != "" {
		sig, err := hex.DecodeString(w.Signature)
		if err != nil {
			return identity.World{}, fmt.Errorf("config: world signature: %w", err)
		}
		out.Signature = sig
	}
	return out, nil
}

// FromWorld converts an identity.World into its on-disk YAML form.
func FromWorld(w identity.World) WorldCfg {
	out := WorldCfg{ID: w.ID, Timestamp: w.Timestamp, Signature: hex.EncodeToString(w.Signature)}
	for _, r := range w.Roots {
		out.Roots = append(out.Roots, RootCfg{Address: r.Address.String(), Endpoint: r.Endpoint})
	}
	return out
}

// LoadWorldCfg reads a world roster from path and decodes it into an
// identity.World, leaving signature verification to the caller (the
// roster's authority key is deployment-specific and out of this package's
// scope).
func LoadWorldCfg(path string) (identity.World, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return identity.World{}, err
	}
	var cfg WorldCfg
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return identity.World{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg.ToWorld()
}

// SaveWorldCfg writes w to path, overwriting any existing file.
func SaveWorldCfg(path string, w identity.World) error {
	b, err := yaml.Marshal(FromWorld(w))
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}

// identityFile is the on-disk form of a local node's key material: its
// Curve25519 agreement scalar, Ed25519 signing key, and the resulting
// public Identity, all hex-encoded in the style of identity.Address.String.
type identityFile struct {
	PrivateKey        string
	SigningPrivateKey string
	Identity          string
}

// GenerateLocalIdentity creates a fresh Identity from real entropy, the
// config-layer counterpart of cmd/key.go's GenerateKey: a random seed goes
// through xcrypto.GeneratePrivateKey/identity.GenerateIdentity rather than
// wireguard's key generator, since this module's identities are VL1
// identities, not WireGuard peers.
func GenerateLocalIdentity() (identity.Identity, [32]byte, ed25519.PrivateKey, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return identity.Identity{}, [32]byte{}, nil, err
	}
	priv := xcrypto.GeneratePrivateKey(seed)
	id, signingPriv, err := identity.GenerateIdentity(priv)
	if err != nil {
		return identity.Identity{}, [32]byte{}, nil, err
	}
	return id, priv, signingPriv, nil
}

// SaveIdentity writes id/priv/signingPriv to path as YAML.
func SaveIdentity(path string, id identity.Identity, priv [32]byte, signingPriv ed25519.PrivateKey) error {
	b, err := yaml.Marshal(identityFile{
		PrivateKey:        hex.EncodeToString(priv[:]),
		SigningPrivateKey: hex.EncodeToString(signingPriv),
		Identity:          hex.EncodeToString(id.Serialize()),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}

// LoadIdentity reads the key material SaveIdentity wrote.
func LoadIdentity(path string) (identity.Identity, [32]byte, ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return identity.Identity{}, [32]byte{}, nil, err
	}
	var f identityFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return identity.Identity{}, [32]byte{}, nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	var priv [32]byte
	privBytes, err := hex.DecodeString(f.PrivateKey)
	if err != nil || len(privBytes) != len(priv) {
		return identity.Identity{}, [32]byte{}, nil, fmt.Errorf("config: %s: malformed private_key", path)
	}
	copy(priv[:], privBytes)

	signingPriv, err := hex.DecodeString(f.SigningPrivateKey)
	if err != nil || len(signingPriv) != ed25519.PrivateKeySize {
		return identity.Identity{}, [32]byte{}, nil, fmt.Errorf("config: %s: malformed signing_private_key", path)
	}

	idBytes, err := hex.DecodeString(f.Identity)
	if err != nil {
		return identity.Identity{}, [32]byte{}, nil, fmt.Errorf("config: %s: malformed identity: %w", path, err)
	}
	id, err := identity.DeserializeIdentity(idBytes)
	if err != nil {
		return identity.Identity{}, [32]byte{}, nil, err
	}
	return id, priv, ed25519.PrivateKey(signingPriv), nil
}
