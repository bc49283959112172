package pagestore_test

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/calvinalkan/pagevault/pkg/pagestore"
)

// mockStore is an in-memory Store recording every AddPage in order.
type mockStore struct {
	mu        sync.Mutex
	pages     map[string]map[int]pagestore.Page
	addOrder  []pagestore.Page
	getCalls  int
	async     bool
	destroyed bool

	// addGate, when set, blocks AddPage until the channel is closed.
	addGate chan struct{}
}

func newMockStore() *mockStore {
	return &mockStore{
		pages: map[string]map[int]pagestore.Page{},
		async: true,
	}
}

func (m *mockStore) AddPage(ctx pagestore.Context, page pagestore.Page) {
	m.mu.Lock()
	gate := m.addGate
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.pages[ctx.SessionID()]
	if session == nil {
		session = map[int]pagestore.Page{}
		m.pages[ctx.SessionID()] = session
	}

	session[page.ID()] = page
	m.addOrder = append(m.addOrder, page)
}

func (m *mockStore) GetPage(ctx pagestore.Context, id int) (pagestore.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getCalls++

	return m.pages[ctx.SessionID()][id], nil
}

func (m *mockStore) getCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.getCalls
}

func (m *mockStore) RemovePage(ctx pagestore.Context, page pagestore.Page) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pages[ctx.SessionID()], page.ID())
}

func (m *mockStore) RemoveAllPages(ctx pagestore.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pages, ctx.SessionID())
}

func (m *mockStore) CanBeAsynchronous(pagestore.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.async
}

func (m *mockStore) Detach(pagestore.Context) {}

func (m *mockStore) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.destroyed = true
}

// count returns the number of pages stored for a session.
func (m *mockStore) count(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.pages[sessionID])
}

// addedIDs returns the page ids in the order AddPage received them.
func (m *mockStore) addedIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int, 0, len(m.addOrder))
	for _, page := range m.addOrder {
		ids = append(ids, page.ID())
	}

	return ids
}

// added returns the pages in the order AddPage received them.
func (m *mockStore) added() []pagestore.Page {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]pagestore.Page(nil), m.addOrder...)
}

// stored returns the page currently held for a session id pair.
func (m *mockStore) stored(sessionID string, pageID int) pagestore.Page {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.pages[sessionID][pageID]
}

// replace swaps the stored page, used to simulate at-rest tampering.
func (m *mockStore) replace(sessionID string, page pagestore.Page) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pages[sessionID][page.ID()] = page
}

// clear forgets everything without touching the add log.
func (m *mockStore) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pages = map[string]map[int]pagestore.Page{}
}

// testPage is a live (non-serialized) page used to exercise serializers.
type testPage struct {
	PageID int
	Title  string
}

func (p *testPage) ID() int { return p.PageID }

// gobSerializer serializes testPage values with encoding/gob.
type gobSerializer struct{}

func (gobSerializer) Serialize(page pagestore.Page) ([]byte, error) {
	var buf bytes.Buffer

	err := gob.NewEncoder(&buf).Encode(page.(*testPage))
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (gobSerializer) Deserialize(data []byte) (pagestore.Page, error) {
	var page testPage

	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&page)
	if err != nil {
		return nil, err
	}

	return &page, nil
}
