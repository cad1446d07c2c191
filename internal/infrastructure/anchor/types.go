package anchor

type challengeResponse struct {
	// The challenge transaction shows up under different names depending on
	// the authority implementation.
	Transaction string `json:"transaction"`
	Challenge   string `json:"challenge"`
	Envelope    string `json:"envelope"`

	NetworkPassphrase string `json:"network_passphrase"`
	Error             string `json:"error"`
}

type tokenRequest struct {
	Transaction string `json:"transaction"`
}

type tokenResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

type interactiveRequest struct {
	AssetCode string `json:"asset_code"`
	Account   string `json:"account"`
	Amount    string `json:"amount,omitempty"`
}

type interactiveResponse struct {
	Id    string `json:"id"`
	Url   string `json:"url"`
	Type  string `json:"type"`
	Error string `json:"error"`
}

type transferStatusResponse struct {
	Transaction struct {
		Id     string `json:"id"`
		Status string `json:"status"`
	} `json:"transaction"`
	Error string `json:"error"`
}
