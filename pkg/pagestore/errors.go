package pagestore

import "errors"

// Sentinel errors returned by pagestore operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, pagestore.ErrCrypt) {
//	    // corrupted or tampered page data
//	}
var (
	// ErrDuplicateStore indicates a second disk store was created for an
	// application name that is already registered.
	//
	// This is a configuration error.
	ErrDuplicateStore = errors.New("pagestore: store already registered for application")

	// ErrStoreLocked indicates the store folder is held by another process.
	//
	// Recovery: stop the other process, or use a different store root.
	ErrStoreLocked = errors.New("pagestore: store folder locked")

	// ErrNoSerializer indicates a live page reached a byte-oriented store
	// with no serializer configured.
	//
	// This is a configuration error.
	ErrNoSerializer = errors.New("pagestore: no serializer configured")

	// ErrNotRaw indicates a store that requires serialized pages received
	// a live page. Position the store behind a [SerializingStore].
	//
	// This is a configuration error.
	ErrNotRaw = errors.New("pagestore: page is not in serialized form")

	// ErrCrypt indicates an encryption or decryption failure.
	//
	// A page that fails to decrypt is never silently treated as absent,
	// because that would be indistinguishable from an expired page.
	ErrCrypt = errors.New("pagestore: crypt failure")
)
