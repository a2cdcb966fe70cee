package secretbox

import "errors"

// Kind tells how a stored credential is represented.
type Kind int

const (
	KindEmpty Kind = iota
	KindPlaintext
	KindEncrypted
)

// Credential is a stored provider credential as read from the database.
// Legacy rows may still hold plaintext; those are readable but never written.
type Credential struct {
	kind  Kind
	value string
}

// Sealed is the only credential shape repositories accept for writes.
// It can only be produced by Seal or by reading an already encrypted value.
type Sealed struct {
	value string
}

func (s Sealed) String() string { return s.value }

func (s Sealed) IsZero() bool { return s.value == "" }

// ParseStored classifies a stored value.
func ParseStored(v string) Credential {
	switch {
	case v == "":
		return Credential{kind: KindEmpty}
	case IsEncrypted(v):
		return Credential{kind: KindEncrypted, value: v}
	default:
		return Credential{kind: KindPlaintext, value: v}
	}
}

func (c Credential) Kind() Kind { return c.kind }

func (c Credential) IsLegacy() bool { return c.kind == KindPlaintext }

// Stored is the value exactly as read from storage.
func (c Credential) Stored() string { return c.value }

// Reveal returns the plaintext credential for either variant.
func (c *Cipher) Reveal(cred Credential) (string, error) {
	switch cred.kind {
	case KindEncrypted:
		return c.Decrypt(cred.value)
	case KindPlaintext:
		return cred.value, nil
	default:
		return "", errors.New("credential is empty")
	}
}

// Seal encrypts a plaintext credential for storage.
func (c *Cipher) Seal(plaintext string) (Sealed, error) {
	if plaintext == "" {
		return Sealed{}, errors.New("credential is empty")
	}
	v, err := c.Encrypt(plaintext)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{value: v}, nil
}

// Upgrade turns a legacy plaintext credential into its sealed form.
// Encrypted credentials are returned as-is so the upgrade is one-way and idempotent.
func (c *Cipher) Upgrade(cred Credential) (Sealed, error) {
	switch cred.kind {
	case KindEncrypted:
		return Sealed{value: cred.value}, nil
	case KindPlaintext:
		return c.Seal(cred.value)
	default:
		return Sealed{}, errors.New("credential is empty")
	}
}
