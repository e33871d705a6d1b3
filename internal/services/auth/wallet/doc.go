// Package wallet verifies Ethereum personal-sign login signatures.
//
// A login message is signed with the EIP-191 prefix. The signer's public key
// is recovered from the 65-byte signature and its address compared with the
// address the client claims.
package wallet
