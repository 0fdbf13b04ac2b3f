// Package tron holds the TRON specific address and message-signing helpers.
// TRON shares secp256k1 and keccak256 with Ethereum, so the heavy lifting is
// done by go-ethereum; only the address encoding and message prefixes differ.
package tron

import (
	"crypto/ecdsa"
	"errors"
	"regexp"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the version byte of mainnet and testnet TRON addresses.
const AddressPrefix byte = 0x41

var (
	ErrAddressFormat   = errors.New("address does not match TRON base58 format")
	ErrAddressChecksum = errors.New("address checksum mismatch")
	ErrAddressVersion  = errors.New("address version byte is not 0x41")
)

// base58 alphabet excludes 0, O, I and l
var addressPattern = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)

// Address is a decoded TRON account address
type Address struct {
	raw common.Address
}

// ParseAddress decodes a base58check TRON address such as
// "TJRabPrwbZy45sbavfcjinPJC18kjpRTv8".
func ParseAddress(s string) (Address, error) {
	if !addressPattern.MatchString(s) {
		return Address{}, ErrAddressFormat
	}
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		return Address{}, ErrAddressChecksum
	}
	if version != AddressPrefix {
		return Address{}, ErrAddressVersion
	}
	if len(payload) != common.AddressLength {
		return Address{}, ErrAddressFormat
	}
	return Address{raw: common.BytesToAddress(payload)}, nil
}

// ValidAddress reports whether s is a well formed TRON address.
func ValidAddress(s string) bool {
	_, err := ParseAddress(s)
	return err == nil
}

// FromEVM converts a 20-byte account to its TRON form.
func FromEVM(a common.Address) Address {
	return Address{raw: a}
}

// FromPublicKey derives the TRON address of a secp256k1 public key.
func FromPublicKey(pub *ecdsa.PublicKey) Address {
	return Address{raw: crypto.PubkeyToAddress(*pub)}
}

// EVM returns the 20-byte account used in ABI encoding and JSON-RPC calls.
func (a Address) EVM() common.Address {
	return a.raw
}

// Hex returns the 21-byte hex form with the 0x41 prefix, without 0x.
func (a Address) Hex() string {
	return common.Bytes2Hex(append([]byte{AddressPrefix}, a.raw.Bytes()...))
}

func (a Address) String() string {
	return base58.CheckEncode(a.raw.Bytes(), AddressPrefix)
}
