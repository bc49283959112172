// Package pagestore persists server-rendered page state across HTTP requests.
//
// A page is an opaque byte payload with an integer id unique within a
// session. Pages flow through a chain of composable stores, each wrapping
// exactly one inner store, terminating at a [DiskStore] that keeps every
// session's pages in a single backing file under a per-session byte budget.
//
// # Basic Usage
//
//	store, err := pagestore.NewDiskStore(pagestore.DiskStoreOptions{
//	    AppName:       "myapp",
//	    Root:          "/var/lib/myapp",
//	    MaxPerSession: 10 << 20,
//	})
//	if err != nil {
//	    // duplicate application name or locked store folder
//	}
//	defer store.Destroy()
//
//	store.AddPage(ctx, pagestore.NewRawPage(1, "home", data))
//	page, err := store.GetPage(ctx, 1)
//
// # Store chain
//
// Decorators compose around the disk store:
//
//	chain := pagestore.NewRequestStore(
//	    pagestore.NewCryptStore(
//	        pagestore.NewAsyncStore(store, 64)))
//
// # Error Handling
//
// Storage I/O failures never fail a request: AddPage logs and drops the
// page, GetPage reports the page as absent. Configuration mistakes
// (duplicate application names, missing serializers) and cipher failures
// are genuine defects and are surfaced, never swallowed.
package pagestore
