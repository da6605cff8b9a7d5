package pager

import "testing"

func buildTestDatabase(t *testing.T, pageCount int, pageSize int) []byte {
	t.Helper()
	header := NewDatabaseHeader(pageSize)
	header.DatabaseSize = uint32(pageCount)
	header.FileChangeCounter = 1

	data := make([]byte, pageCount*pageSize)
	copy(data, header.Serialize())

	// Tag each page after the first with its page number so tests can
	// confirm Get() fetched the right one.
	for p := 2; p <= pageCount; p++ {
		data[(p-1)*pageSize] = byte(p)
	}
	return data
}

func TestOpenAndGet(t *testing.T) {
	data := buildTestDatabase(t, 5, 4096)
	src := NewMemorySource(data, 4096)

	p, err := Open(src, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer p.Close()

	if p.PageSize() != 4096 {
		t.Errorf("PageSize() = %d, want 4096", p.PageSize())
	}
	if p.PageCount() != 5 {
		t.Errorf("PageCount() = %d, want 5", p.PageCount())
	}

	page3, err := p.Get(3)
	if err != nil {
		t.Fatalf("Get(3) error = %v", err)
	}
	if page3[0] != 3 {
		t.Errorf("page 3 tag = %d, want 3", page3[0])
	}

	// Second fetch should come from cache and return the same bytes.
	again, err := p.Get(3)
	if err != nil {
		t.Fatalf("Get(3) second call error = %v", err)
	}
	if again[0] != page3[0] {
		t.Errorf("cached Get(3) = %d, want %d", again[0], page3[0])
	}
}

func TestGetOutOfRange(t *testing.T) {
	data := buildTestDatabase(t, 2, 4096)
	p, err := Open(NewMemorySource(data, 4096), Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer p.Close()

	if _, err := p.Get(0); err == nil {
		t.Error("Get(0) expected error, got nil")
	}
	if _, err := p.Get(99); err == nil {
		t.Error("Get(99) expected error, got nil")
	}
}

func TestDataVersionAndRefresh(t *testing.T) {
	data := buildTestDatabase(t, 2, 4096)
	src := NewMemorySource(data, 4096)

	p, err := Open(src, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer p.Close()

	v1 := p.DataVersion()

	// Simulate another writer bumping the change counter on page 1.
	h := *p.Header() // copy: Header returns the pager's own header
	h.FileChangeCounter++
	copy(data, h.Serialize())

	if err := p.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if p.DataVersion() == v1 {
		t.Error("DataVersion() unchanged after Refresh() of a modified header")
	}
}

func TestGetPageDataImplementsPageProvider(t *testing.T) {
	data := buildTestDatabase(t, 2, 4096)
	p, err := Open(NewMemorySource(data, 4096), Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer p.Close()

	page, err := p.GetPageData(2)
	if err != nil {
		t.Fatalf("GetPageData(2) error = %v", err)
	}
	if page[0] != 2 {
		t.Errorf("GetPageData(2)[0] = %d, want 2", page[0])
	}
}
