package trends

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Widget ids in the explore answer.
const (
	widgetTimeseries     = "TIMESERIES"
	widgetRelatedQueries = "RELATED_QUERIES"
)

type exploreResponse struct {
	Widgets []widget `json:"widgets"`
}

type widget struct {
	ID      string          `json:"id"`
	Token   string          `json:"token"`
	Request json.RawMessage `json:"request"`
}

type multilineResponse struct {
	Default struct {
		TimelineData []struct {
			Time           string   `json:"time"`
			Value          []int    `json:"value"`
			HasData        []bool   `json:"hasData"`
			FormattedValue []string `json:"formattedValue"`
			IsPartial      bool     `json:"isPartial"`
		} `json:"timelineData"`
	} `json:"default"`
}

type relatedResponse struct {
	Default struct {
		RankedList []struct {
			RankedKeyword []struct {
				Query string `json:"query"`
				Value int    `json:"value"`
			} `json:"rankedKeyword"`
		} `json:"rankedList"`
	} `json:"default"`
}

// stripPrefix drops the anti-JSON-hijacking prefix (e.g. ")]}',") the source
// puts in front of every JSON body.
func stripPrefix(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	i := bytes.IndexByte(body, '{')
	if i < 0 {
		return nil, fmt.Errorf("no JSON object in response (response: %s)", preview(body))
	}
	return body[i:], nil
}

func preview(body []byte) string {
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}

// parseExplore returns the widgets of an explore answer.
func parseExplore(body []byte) ([]widget, error) {
	payload, err := stripPrefix(body)
	if err != nil {
		return nil, err
	}

	var resp exploreResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode explore response: %w", err)
	}
	return resp.Widgets, nil
}

// parseMultiline maps a timeline answer onto a Table whose columns are terms,
// in request order. A value is kept only when the source reports data for it.
func parseMultiline(body []byte, terms []string) (*Table, error) {
	payload, err := stripPrefix(body)
	if err != nil {
		return nil, err
	}

	var resp multilineResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode timeline response: %w", err)
	}

	table := &Table{}
	timeline := resp.Default.TimelineData
	if len(timeline) == 0 {
		return table, nil
	}

	table.Columns = append([]string(nil), terms...)
	table.Rows = make([]Row, 0, len(timeline))
	for _, point := range timeline {
		ts, err := strconv.ParseInt(point.Time, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid timeline timestamp %q: %w", point.Time, err)
		}

		row := Row{
			Time:  time.Unix(ts, 0).UTC(),
			Cells: make(map[string]Cell, len(terms)),
		}
		for i, term := range terms {
			if i >= len(point.Value) {
				break
			}
			if i < len(point.HasData) && !point.HasData[i] {
				continue
			}
			formatted := strconv.Itoa(point.Value[i])
			if i < len(point.FormattedValue) && point.FormattedValue[i] != "" {
				formatted = point.FormattedValue[i]
			}
			row.Cells[term] = Cell{Value: point.Value[i], Formatted: formatted}
		}
		if point.IsPartial {
			table.Partial = true
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// parseRising returns the rising list of a related-searches answer. The
// source sends the "top" list first and the "rising" list second.
func parseRising(body []byte) ([]RankedQuery, error) {
	payload, err := stripPrefix(body)
	if err != nil {
		return nil, err
	}

	var resp relatedResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode related queries response: %w", err)
	}

	lists := resp.Default.RankedList
	if len(lists) < 2 {
		return []RankedQuery{}, nil
	}

	rising := make([]RankedQuery, 0, len(lists[1].RankedKeyword))
	for _, kw := range lists[1].RankedKeyword {
		if kw.Query == "" {
			continue
		}
		rising = append(rising, RankedQuery{Query: kw.Query, Value: kw.Value})
	}
	return rising, nil
}
