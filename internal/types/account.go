package types

// Balance is the account balance in the quote asset.
type Balance struct {
	Asset     string  `json:"asset"`
	Total     float64 `json:"total"`
	Available float64 `json:"available"`
}

// Credentials are decrypted exchange API credentials.
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	Testnet   bool   `json:"testnet"`
}

// IsComplete reports whether both key and secret are present.
func (c Credentials) IsComplete() bool {
	return c.APIKey != "" && c.APISecret != ""
}
