package engine

import (
	"github.com/calvinalkan/xdg-document-portal/internal/store"
	"github.com/calvinalkan/xdg-document-portal/internal/xdgerr"
)

// hasPermissions implements spec.md §4.D's has_permissions: an empty app-id
// always holds everything (the owning/unsandboxed caller); otherwise the
// stored bitfield for (doc, app) must have every bit in want set.
func (e *Engine) hasPermissions(docID, appID string, want store.Bits) (bool, error) {
	if appID == "" {
		return true, nil
	}

	bits, err := e.store.LookupPermissions(docID, appID)
	if err != nil {
		return false, err
	}

	return bits.Has(want), nil
}

// tokensToBits converts permission token strings to a bitfield, failing the
// whole conversion (all-or-nothing) if any token is unrecognized.
func tokensToBits(tokens []string) (store.Bits, error) {
	var bits store.Bits

	for _, t := range tokens {
		b, ok := store.TokenBits[t]
		if !ok {
			return 0, xdgerr.New(xdgerr.KindInvalidArgument, "unknown permission token: "+t)
		}

		bits |= b
	}

	return bits, nil
}

// GrantPermissions implements the GrantPermissions method: the caller must
// hold grant-permissions and every bit it is handing out.
func (e *Engine) GrantPermissions(docID, callerApp, targetApp string, perms []string) error {
	if _, ok := e.store.LookupDoc(docID); !ok {
		return xdgerr.Wrap(xdgerr.KindNotFound, "unknown document", store.ErrDocumentNotFound)
	}

	bits, err := tokensToBits(perms)
	if err != nil {
		return err
	}

	ok, err := e.hasPermissions(docID, callerApp, bits|store.PermGrant)
	if err != nil {
		return xdgerr.Wrap(xdgerr.KindFailed, "check grant permission", err)
	}

	if !ok {
		return xdgerr.New(xdgerr.KindNotAllowed, "caller may not grant these permissions")
	}

	if err := e.store.SetPermissions(docID, targetApp, bits, true); err != nil {
		return xdgerr.Wrap(xdgerr.KindFailed, "set permissions", err)
	}

	return nil
}

// RevokePermissions implements RevokePermissions: the caller must hold
// grant-permissions, or be revoking its own permissions.
func (e *Engine) RevokePermissions(docID, callerApp, targetApp string, perms []string) error {
	if _, ok := e.store.LookupDoc(docID); !ok {
		return xdgerr.Wrap(xdgerr.KindNotFound, "unknown document", store.ErrDocumentNotFound)
	}

	bits, err := tokensToBits(perms)
	if err != nil {
		return err
	}

	if callerApp != targetApp {
		ok, err := e.hasPermissions(docID, callerApp, store.PermGrant)
		if err != nil {
			return xdgerr.Wrap(xdgerr.KindFailed, "check grant permission", err)
		}

		if !ok {
			return xdgerr.New(xdgerr.KindNotAllowed, "caller may not revoke permissions for another app")
		}
	}

	if err := e.store.RevokePermissions(docID, targetApp, bits); err != nil {
		return xdgerr.Wrap(xdgerr.KindFailed, "revoke permissions", err)
	}

	return nil
}
