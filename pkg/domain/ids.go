// Package domain holds the primitive identifiers shared across modules.
// Primitives enforce validity at parse time so services never see malformed ids.
package domain

import (
	"encoding/hex"
	"strconv"
	"strings"

	dErrors "lockmint/pkg/domain-errors"
)

// AddressLength is the byte length of an account address.
const AddressLength = 20

// Address identifies an account (owner, buyer, recipient, receiver, actor).
type Address [AddressLength]byte

// NullAddress is the zero address. Transfers from it are mints.
var NullAddress = Address{}

// ParseAddress parses a 0x-prefixed, 40 hex digit address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address cannot be empty")
	}
	raw, ok := strings.CutPrefix(strings.ToLower(s), "0x")
	if !ok {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address must be 0x-prefixed")
	}
	if len(raw) != 2*AddressLength {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address must be 20 bytes")
	}
	var a Address
	if _, err := hex.Decode(a[:], []byte(raw)); err != nil {
		return Address{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "address is not valid hex")
	}
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the lower-case 0x-prefixed hex form.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether a is the null address.
func (a Address) IsZero() bool {
	return a == NullAddress
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLength)
	copy(b, a[:])
	return b
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// TokenID identifies a token in the ownership registry.
type TokenID uint64

// ParseTokenID parses a base-10 token id.
func ParseTokenID(s string) (TokenID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "token id cannot be empty")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "token id must be an unsigned integer")
	}
	return TokenID(v), nil
}

func (id TokenID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Role names a capability checked by the authorization oracle.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleLockManager Role = "lock_manager"
	RoleSaleManager Role = "sale_manager"
	RoleMinter      Role = "minter"
)

// IsValid checks if the role is one of the supported values.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleLockManager, RoleSaleManager, RoleMinter:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
