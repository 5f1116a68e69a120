package main

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// authBridge hands passphrase requests from wallet goroutines to the UI.
// Its Prompt method is the keystore's PassphraseFunc.
type authBridge struct {
	requests chan authRequest
}

type authRequest struct {
	account common.Address
	reply   chan authReply
}

type authReply struct {
	passphrase string
	err        error
}

func newAuthBridge() *authBridge {
	return &authBridge{requests: make(chan authRequest)}
}

// Prompt blocks until the UI answers or ctx is done
func (b *authBridge) Prompt(ctx context.Context, account common.Address) (string, error) {
	req := authRequest{account: account, reply: make(chan authReply, 1)}
	select {
	case b.requests <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.passphrase, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// answer replies to a request. The reply channel is buffered so this
// never blocks.
func (r authRequest) answer(passphrase string, err error) {
	r.reply <- authReply{passphrase: passphrase, err: err}
}
