package hooks

import (
	"context"

	"github.com/google/uuid"
)

const txMetadataKey = "uuid"

// TxMetadataWriteAction stamps a fresh identifier into the transaction
// metadata so later actions (and the continuation) can correlate.
type TxMetadataWriteAction struct {
	rt *Runtime
}

// NewTxMetadataWrite describes the newtxmetadatawrite operation and its observable behavior.
func NewTxMetadataWrite(rt *Runtime) *TxMetadataWriteAction {
	return &TxMetadataWriteAction{rt: rt}
}

// Execute implements [LoginHandler].
func (a *TxMetadataWriteAction) Execute(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	api.SetMetadata(txMetadataKey, uuid.NewString())
	return nil
}

// Continue implements [LoginHandler].
func (a *TxMetadataWriteAction) Continue(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	return nil
}

// TxMetadataReadAction copies the transaction identifier into a custom claim
// on the issued token.
type TxMetadataReadAction struct {
	rt        *Runtime
	claimName string
}

// NewTxMetadataRead describes the newtxmetadataread operation and its observable behavior.
func NewTxMetadataRead(rt *Runtime, claimName string) *TxMetadataReadAction {
	if claimName == "" {
		claimName = "tx_uuid"
	}
	return &TxMetadataReadAction{rt: rt, claimName: claimName}
}

// Execute implements [LoginHandler].
func (a *TxMetadataReadAction) Execute(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	if value := event.Transaction.Metadata[txMetadataKey]; value != "" {
		api.SetCustomClaim(a.claimName, value)
	}
	return nil
}

// Continue implements [LoginHandler].
func (a *TxMetadataReadAction) Continue(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	return nil
}
