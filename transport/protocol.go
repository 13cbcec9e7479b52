package transport

const (
	ActionSubscribe   = "sub"
	ActionUnsubscribe = "unsub"

	TypeError = "error"
)

type WSRequest struct {
	Action string `json:"action"`
	Symbol string `json:"symbol,omitempty"`
	ID     string `json:"id,omitempty"`
}

type WSResponse struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	OK     bool   `json:"ok"`
	Symbol string `json:"symbol,omitempty"`
	Error  string `json:"error,omitempty"`
}
