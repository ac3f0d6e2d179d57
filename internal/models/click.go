package models

// Click actions
const (
	ClickActionPrepare  = 0
	ClickActionComplete = 1
)

// ClickRequest is the url-encoded callback Click posts for both actions.
// Values stay raw strings because the signature is computed over them verbatim.
type ClickRequest struct {
	ClickTransID      string `form:"click_trans_id" json:"click_trans_id"`
	ServiceID         string `form:"service_id" json:"service_id"`
	ClickPaydocID     string `form:"click_paydoc_id" json:"click_paydoc_id,omitempty"`
	MerchantTransID   string `form:"merchant_trans_id" json:"merchant_trans_id"`
	MerchantPrepareID string `form:"merchant_prepare_id" json:"merchant_prepare_id,omitempty"`
	Amount            string `form:"amount" json:"amount"`
	Action            string `form:"action" json:"action"`
	Error             string `form:"error" json:"error"`
	ErrorNote         string `form:"error_note" json:"error_note,omitempty"`
	SignTime          string `form:"sign_time" json:"sign_time"`
	SignString        string `form:"sign_string" json:"-"`
}

// ClickResponse is the JSON reply, always sent with HTTP 200
type ClickResponse struct {
	ClickTransID      string `json:"click_trans_id,omitempty"`
	MerchantTransID   string `json:"merchant_trans_id,omitempty"`
	MerchantPrepareID *uint  `json:"merchant_prepare_id,omitempty"`
	MerchantConfirmID *uint  `json:"merchant_confirm_id,omitempty"`
	Error             int    `json:"error"`
	ErrorNote         string `json:"error_note"`
}
