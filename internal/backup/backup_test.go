package backup

import "testing"

func TestDecodeSnapshot(t *testing.T) {
	raw := []byte(`{"name":"Work","tabs":[{"id":1,"url":"https://example.com"}],"bounds":{"left":0,"top":0,"width":800,"height":600}}`)
	space, err := DecodeSnapshot(raw)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if space.Name != "Work" {
		t.Errorf("expected name Work, got %s", space.Name)
	}
	if len(space.Tabs) != 1 || space.Tabs[0].URL != "https://example.com" {
		t.Errorf("unexpected tabs: %+v", space.Tabs)
	}
	if space.Bounds == nil || space.Bounds.Width != 800 {
		t.Errorf("unexpected bounds: %+v", space.Bounds)
	}
}

func TestDecodeSnapshot_NoTabsErrors(t *testing.T) {
	if _, err := DecodeSnapshot([]byte(`{"name":"Empty","tabs":[]}`)); err == nil {
		t.Error("expected error for empty tab list")
	}
}

func TestDecodeURLList_JSONArray(t *testing.T) {
	urls, err := DecodeURLList([]byte(`["https://a.example","https://b.example"]`))
	if err != nil {
		t.Fatalf("DecodeURLList: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %d", len(urls))
	}
}

func TestDecodeURLList_NewlineDelimited(t *testing.T) {
	urls, err := DecodeURLList([]byte("https://a.example\n\nhttps://b.example\n"))
	if err != nil {
		t.Fatalf("DecodeURLList: %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://a.example" || urls[1] != "https://b.example" {
		t.Errorf("unexpected urls: %v", urls)
	}
}
