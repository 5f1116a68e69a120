package main

import "wave-portal-tui/rpc"

// -------------------- TEA MESSAGES --------------------
// Message types owned by the main model. The portal controller defines
// its own and receives every message through portal.Update.

// clipboardCopiedMsg indicates clipboard copy completed
type clipboardCopiedMsg struct{}

// clearClipboardMsg clears the copy feedback once it has been shown long enough
type clearClipboardMsg struct{}

// logInitMsg signals that log viewport should be initialized
type logInitMsg struct{}

// rpcConnectedMsg contains result of RPC connection attempt
type rpcConnectedMsg struct {
	client *rpc.Client
	err    error
}

// authRequestMsg carries a passphrase request from the wallet
type authRequestMsg struct {
	req authRequest
}
