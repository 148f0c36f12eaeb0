package trends

import (
	"testing"
	"time"
)

func TestParseExplore(t *testing.T) {
	body := `)]}'
{"widgets":[{"id":"TIMESERIES","token":"tok-1","request":{"time":"today 7-d"}},{"id":"RELATED_QUERIES","token":"tok-2","request":{"keyword":"a"}}]}`

	widgets, err := parseExplore([]byte(body))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(widgets) != 2 {
		t.Fatalf("Expected 2 widgets, got %d", len(widgets))
	}
	if widgets[0].ID != widgetTimeseries || widgets[0].Token != "tok-1" {
		t.Errorf("Unexpected first widget: %+v", widgets[0])
	}
	if string(widgets[0].Request) != `{"time":"today 7-d"}` {
		t.Errorf("Expected raw request to be preserved, got %s", widgets[0].Request)
	}
}

func TestParseMultiline(t *testing.T) {
	body := `)]}',
{"default":{"timelineData":[
 {"time":"1700000000","value":[10,0],"hasData":[true,false],"formattedValue":["10","0"]},
 {"time":"1700003600","value":[20,5],"hasData":[true,true],"formattedValue":["20","5"],"isPartial":true}
]}}`

	table, err := parseMultiline([]byte(body), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !table.HasColumn("alpha") || !table.HasColumn("beta") {
		t.Fatalf("Expected both columns, got %v", table.Columns)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(table.Rows))
	}
	if !table.Partial {
		t.Error("Expected table to be flagged partial")
	}

	first := table.Rows[0]
	if !first.Time.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("Unexpected first row time: %v", first.Time)
	}
	if c, ok := first.Cell("alpha"); !ok || c.Value != 10 || c.Formatted != "10" {
		t.Errorf("Unexpected alpha cell: %+v (present=%v)", c, ok)
	}
	if _, ok := first.Cell("beta"); ok {
		t.Error("Expected beta cell to be absent when hasData is false")
	}
	if c, ok := table.Rows[1].Cell("beta"); !ok || c.Value != 5 {
		t.Errorf("Unexpected beta cell in second row: %+v", c)
	}
}

func TestParseMultiline_Empty(t *testing.T) {
	table, err := parseMultiline([]byte(`)]}', {"default":{"timelineData":[]}}`), []string{"alpha"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !table.Empty() {
		t.Error("Expected empty table")
	}
	if table.HasColumn("alpha") {
		t.Error("Expected no columns on an empty table")
	}
}

func TestParseMultiline_InvalidTimestamp(t *testing.T) {
	_, err := parseMultiline([]byte(`{"default":{"timelineData":[{"time":"yesterday","value":[1]}]}}`), []string{"a"})
	if err == nil {
		t.Fatal("Expected error for invalid timestamp, got nil")
	}
}

func TestParseRising(t *testing.T) {
	body := `)]}',
{"default":{"rankedList":[
 {"rankedKeyword":[{"query":"top one","value":100}]},
 {"rankedKeyword":[{"query":"rising one","value":250000},{"query":"","value":3},{"query":"rising two","value":140}]}
]}}`

	rising, err := parseRising([]byte(body))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(rising) != 2 {
		t.Fatalf("Expected 2 rising queries, got %d", len(rising))
	}
	if rising[0].Query != "rising one" || rising[0].Value != 250000 {
		t.Errorf("Unexpected first rising query: %+v", rising[0])
	}
	if rising[1].Query != "rising two" {
		t.Errorf("Unexpected second rising query: %+v", rising[1])
	}
}

func TestParseRising_NoRisingList(t *testing.T) {
	rising, err := parseRising([]byte(`{"default":{"rankedList":[{"rankedKeyword":[]}]}}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(rising) != 0 {
		t.Errorf("Expected no rising queries, got %d", len(rising))
	}
}

func TestStripPrefix_Errors(t *testing.T) {
	if _, err := stripPrefix(nil); err == nil {
		t.Error("Expected error for empty body")
	}
	if _, err := stripPrefix([]byte("<html>blocked</html>")); err == nil {
		t.Error("Expected error for non-JSON body")
	}
}
