package constants

// Strategy names the method used to turn artifact bytes into text.
type Strategy string

// Stable values (reported to callers and stored with expenses).
const (
	StrategyOCR          Strategy = "ocr"
	StrategyEmbeddedText Strategy = "embedded_text"
	StrategyOCRFallback  Strategy = "ocr_fallback"
	StrategyPassthrough  Strategy = "passthrough"
	StrategyQR           Strategy = "qr"
)

// IsDocument reports whether the strategy reads text the document already carries.
func (s Strategy) IsDocument() bool {
	switch s {
	case StrategyEmbeddedText, StrategyPassthrough, StrategyQR:
		return true
	default:
		return false
	}
}
