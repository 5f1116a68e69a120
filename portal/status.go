package portal

// StatusKind classifies the status line
type StatusKind int

const (
	StatusNone StatusKind = iota
	StatusInfo
	StatusPending
	StatusSuccess
)

func (k StatusKind) String() string {
	switch k {
	case StatusInfo:
		return "info"
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	default:
		return "none"
	}
}

// Status is the single-slot notice shown under the input. Link, when set,
// points at the transaction on the block explorer.
type Status struct {
	Kind StatusKind
	Text string
	Link string
}

// Empty reports whether there is nothing to show
func (s Status) Empty() bool {
	return s.Kind == StatusNone && s.Text == ""
}

// User-facing notices
const (
	NoWalletAlert      = "You must configure a wallet first! Set WAVE_KEYSTORE or WAVE_PRIVATE_KEY."
	ConnectFirstText   = "Please connect your wallet first."
	WaveProcessingText = "Wave processing, you can view it on the explorer"
	WaveSuccessText    = "Wave successfully."
)
