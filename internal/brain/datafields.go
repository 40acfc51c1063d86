package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// searchPages is how many pages a free-text search reads; the service does not
// report a count for searches.
const searchPages = 2

// Scope narrows a data-field search.
type Scope struct {
	InstrumentType string
	Region         string
	Delay          int
	Universe       string
}

// DataField is one searchable input of the expression language.
type DataField struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type dataFieldPage struct {
	Count   int         `json:"count"`
	Results []DataField `json:"results"`
}

// SearchDataFields lists data fields in scope. With an empty search the whole
// dataset is paged through using the count from the first page; a search reads
// a fixed number of pages. Pages are fetched concurrently and flattened in
// page order.
func (c *Client) SearchDataFields(ctx context.Context, sess *Session, scope Scope, datasetID, search string) ([]DataField, error) {
	size := c.cfg.DataFieldPageSize

	query := func(offset int) url.Values {
		q := url.Values{}
		q.Set("instrumentType", scope.InstrumentType)
		q.Set("region", scope.Region)
		q.Set("delay", strconv.Itoa(scope.Delay))
		q.Set("universe", scope.Universe)
		if datasetID != "" {
			q.Set("dataset.id", datasetID)
		}
		if search != "" {
			q.Set("search", search)
		}
		q.Set("limit", strconv.Itoa(size))
		q.Set("offset", strconv.Itoa(offset))
		return q
	}

	fetch := func(ctx context.Context, offset int) (dataFieldPage, error) {
		resp, body, err := c.do(ctx, sess, http.MethodGet, "/data-fields", query(offset), nil)
		if err != nil {
			return dataFieldPage{}, err
		}
		if resp.StatusCode != http.StatusOK {
			return dataFieldPage{}, newStatusError("search data fields", resp.StatusCode, body, ErrUnexpectedStatus)
		}
		var page dataFieldPage
		if err := json.Unmarshal(body, &page); err != nil {
			return dataFieldPage{}, fmt.Errorf("failed to parse data fields: %w", err)
		}
		return page, nil
	}

	var pages [][]DataField
	start := 0
	if search == "" {
		first, err := fetch(ctx, 0)
		if err != nil {
			return nil, err
		}
		n := (first.Count + size - 1) / size
		if n < 1 {
			n = 1
		}
		pages = make([][]DataField, n)
		pages[0] = first.Results
		start = 1
	} else {
		pages = make([][]DataField, searchPages)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i := start; i < len(pages); i++ {
		g.Go(func() error {
			page, err := fetch(gctx, i*size)
			if err != nil {
				return err
			}
			pages[i] = page.Results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []DataField
	for _, p := range pages {
		out = append(out, p...)
	}
	c.logger.Debug("data fields fetched",
		zap.String("dataset", datasetID), zap.String("search", search),
		zap.Int("pages", len(pages)), zap.Int("fields", len(out)))
	return out, nil
}

// FieldIDs returns the ids of fields of the given type (all fields if typ is empty).
func FieldIDs(fields []DataField, typ string) []string {
	var ids []string
	for _, f := range fields {
		if typ == "" || f.Type == typ {
			ids = append(ids, f.ID)
		}
	}
	return ids
}
