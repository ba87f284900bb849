// Package merkle verifies and builds keccak256 Merkle trees with sorted-pair
// hashing, the layout used for on-chain address allowlists. A leaf is the
// keccak256 of the 20 address bytes.
package merkle

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"lockmint/pkg/domain"
)

const HashLength = 32

var (
	ErrEmptyTree    = errors.New("merkle tree needs at least one leaf")
	ErrLeafNotFound = errors.New("leaf not in tree")
	ErrInvalidHash  = errors.New("invalid hash")
)

// Hash is a 32-byte keccak256 digest.
type Hash [HashLength]byte

// ParseHash parses a 0x-prefixed or bare 64-character hex string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != HashLength*2 {
		return h, fmt.Errorf("%w: want %d hex characters, got %d", ErrInvalidHash, HashLength*2, len(raw))
	}
	if _, err := hex.Decode(h[:], []byte(raw)); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return h, nil
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Keccak256 hashes the concatenation of data.
func Keccak256(data ...[]byte) Hash {
	var h Hash
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	d.Sum(h[:0])
	return h
}

// Leaf derives the allowlist leaf for an address.
func Leaf(addr domain.Address) Hash {
	return Keccak256(addr.Bytes())
}

func hashPair(a, b Hash) Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return Keccak256(a[:], b[:])
}

// ProcessProof folds proof into leaf and returns the implied root.
func ProcessProof(proof []Hash, leaf Hash) Hash {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed
}

// Verify reports whether proof links leaf to root.
func Verify(proof []Hash, root, leaf Hash) bool {
	return ProcessProof(proof, leaf) == root
}

// Verifier adapts Verify to the allowance ledger's verifier port.
type Verifier struct{}

func (Verifier) Verify(proof []Hash, root Hash, account domain.Address) bool {
	return Verify(proof, root, Leaf(account))
}

// Tree is a fully materialized tree. An odd node at the end of a layer is
// promoted to the next layer unchanged.
type Tree struct {
	layers [][]Hash
}

// NewTree builds a tree over leaves in the given order.
func NewTree(leaves []Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	layer := append([]Hash(nil), leaves...)
	layers := [][]Hash{layer}
	for len(layer) > 1 {
		next := make([]Hash, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				next = append(next, layer[i])
				continue
			}
			next = append(next, hashPair(layer[i], layer[i+1]))
		}
		layers = append(layers, next)
		layer = next
	}
	return &Tree{layers: layers}, nil
}

// NewAddressTree builds a tree over the leaves of addrs.
func NewAddressTree(addrs []domain.Address) (*Tree, error) {
	leaves := make([]Hash, len(addrs))
	for i, a := range addrs {
		leaves[i] = Leaf(a)
	}
	return NewTree(leaves)
}

func (t *Tree) Root() Hash {
	return t.layers[len(t.layers)-1][0]
}

// Proof returns the sibling path for the first occurrence of leaf.
func (t *Tree) Proof(leaf Hash) ([]Hash, error) {
	index := -1
	for i, l := range t.layers[0] {
		if l == leaf {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, ErrLeafNotFound
	}

	var proof []Hash
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := index ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		index /= 2
	}
	return proof, nil
}

// AddressProof returns the proof for addr.
func (t *Tree) AddressProof(addr domain.Address) ([]Hash, error) {
	return t.Proof(Leaf(addr))
}
