package vapi

// Resolution is the outcome of reconciling the two shop id sources.
type Resolution struct {
	ShopID   string
	Mismatch bool
}

// ResolveShopID reconciles the trusted (metadata) and untrusted (parameter)
// shop ids. Conflicting values resolve to no shop and Mismatch; otherwise
// the trusted id wins, then the untrusted one.
func ResolveShopID(trusted, untrusted string) Resolution {
	if trusted != "" && untrusted != "" && trusted != untrusted {
		return Resolution{Mismatch: true}
	}
	if trusted != "" {
		return Resolution{ShopID: trusted}
	}
	return Resolution{ShopID: untrusted}
}
