package pagestore

// Page is a unit of persisted page state, identified by an integer id
// unique within a session.
//
// Pages come in two forms: [RawPage] carries serialized bytes and is the
// only form byte-oriented stores accept; any other implementation is a
// "live" page owned by the host framework and must pass through a
// [Serializer] before it reaches disk.
type Page interface {
	// ID returns the page identifier, unique within a session.
	ID() int
}

// RawPage is the serialized form of a page: an opaque byte payload plus a
// diagnostic type tag.
type RawPage struct {
	id       int
	pageType string
	data     []byte
}

// NewRawPage creates a raw page. The data slice is not copied.
func NewRawPage(id int, pageType string, data []byte) *RawPage {
	return &RawPage{id: id, pageType: pageType, data: data}
}

// ID returns the page identifier.
func (p *RawPage) ID() int {
	return p.id
}

// Type returns the diagnostic page type tag.
func (p *RawPage) Type() string {
	return p.pageType
}

// Data returns the serialized page bytes.
func (p *RawPage) Data() []byte {
	return p.data
}

// Serializer converts live pages to bytes and back.
//
// It is an external collaborator: pagestore never inspects page internals.
// Stores that are handed a Serializer accept live pages; without one they
// are restricted to [RawPage] payloads.
type Serializer interface {
	// Serialize converts a page to its byte form.
	Serialize(page Page) ([]byte, error)

	// Deserialize reconstructs a page from bytes produced by Serialize.
	Deserialize(data []byte) (Page, error)
}
