// Package source retrieves and decodes the raw OFAC list files. It is a thin
// external collaborator: four positional headerless CSVs per list category,
// fetched over HTTP. Any retrieval or layout failure aborts the whole run so
// the reconciler never sees a partial snapshot.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ofactrack/internal/ofac/models"
	dErrors "ofactrack/pkg/domain-errors"
)

// file names relative to the download root, per list category.
var listFiles = map[models.ListCategory][4]string{
	models.CategorySDN: {
		"sdn.csv", "add.csv", "alt.csv", "sdn_comments.csv",
	},
	models.CategoryConsolidated: {
		"consolidated/cons_prim.csv", "consolidated/cons_add.csv",
		"consolidated/cons_alt.csv", "consolidated/cons_comments.csv",
	},
}

// Client downloads raw list files from the Treasury download root.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a source client. baseURL has no trailing slash.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 2 * time.Minute},
		logger:  logger,
	}
}

// FetchList retrieves and decodes the four files of one list category. The
// fetches run concurrently; the first failure cancels the rest.
func (c *Client) FetchList(ctx context.Context, category models.ListCategory) (models.RawLists, DecodeStats, error) {
	files, ok := listFiles[category]
	if !ok {
		return models.RawLists{}, DecodeStats{}, dErrors.Newf(dErrors.CodeBadInput, "unknown list category %q", category)
	}

	lists := models.RawLists{Category: category}
	var stats DecodeStats
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		recs, st, err := fetchDecode(gctx, c, files[0], DecodePrimary)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		lists.Primary = recs
		stats.add(st)
		return nil
	})
	g.Go(func() error {
		recs, st, err := fetchDecode(gctx, c, files[1], DecodeAddress)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		lists.Address = recs
		stats.add(st)
		return nil
	})
	g.Go(func() error {
		recs, st, err := fetchDecode(gctx, c, files[2], DecodeAltName)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		lists.AltName = recs
		stats.add(st)
		return nil
	})
	g.Go(func() error {
		recs, st, err := fetchDecode(gctx, c, files[3], DecodeComment)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		lists.Comment = recs
		stats.add(st)
		return nil
	})

	if err := g.Wait(); err != nil {
		return models.RawLists{}, DecodeStats{}, err
	}

	c.logger.Info("fetched list",
		zap.String("category", string(category)),
		zap.Int("primary", len(lists.Primary)),
		zap.Int("addresses", len(lists.Address)),
		zap.Int("alt_names", len(lists.AltName)),
		zap.Int("comments", len(lists.Comment)),
		zap.Int("placeholder_rows", stats.PlaceholderRows),
		zap.Int("bad_entity_ids", stats.BadEntityID),
	)

	return lists, stats, nil
}

// fetchDecode downloads one file and runs it through the given decoder.
func fetchDecode[T any](ctx context.Context, c *Client, file string, decode func(io.Reader) ([]T, DecodeStats, error)) ([]T, DecodeStats, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, file)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, DecodeStats{}, dErrors.Wrap(err, dErrors.CodeRetrieval, "fetch "+file)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, DecodeStats{}, dErrors.Wrap(err, dErrors.CodeRetrieval, "fetch "+file)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, DecodeStats{}, dErrors.Newf(dErrors.CodeRetrieval, "fetch %s: unexpected status %d", file, resp.StatusCode)
	}

	recs, stats, err := decode(resp.Body)
	if err != nil {
		// Decode failures keep their own code (schema errors stay fatal schema
		// errors); only transport problems are retrieval errors.
		return nil, DecodeStats{}, dErrors.Wrap(err, dErrors.CodeOf(err), "decode "+file)
	}
	return recs, stats, nil
}
