package auth

// Identity is the caller's principal for ownership checks. A caller can hold
// a wallet address, a farcaster handle, or neither; the zero value is
// anonymous. Ownership of a bounty is decided against exactly these two
// fields, never against anything the handler scraped together itself.
type Identity struct {
	WalletAddress   string
	FarcasterHandle string
}

// IsAnonymous reports whether the caller carries no usable identity.
func (i Identity) IsAnonymous() bool {
	return i.WalletAddress == "" && i.FarcasterHandle == ""
}
