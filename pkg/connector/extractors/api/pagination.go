package api

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/docpath"
	"github.com/datafreight/freight/pkg/models"
)

const (
	strategyNone   = "none"
	strategyOffset = "offset"
	strategyCursor = "cursor"
	strategyLink   = "link"
)

// paginationConfig holds the settings for one pagination strategy. Only the
// fields of the configured strategy are consulted.
type paginationConfig struct {
	strategy  string
	itemsPath string

	// offset
	pageParam     string
	pageSizeParam string
	pageSize      int
	startPage     int
	maxPages      int
	hasMorePath   string

	// cursor
	cursorParam    string
	nextCursorPath string

	// link
	nextLinkPath string
}

func newPaginationConfig(params config.Params) paginationConfig {
	return paginationConfig{
		strategy:       params.GetString("type", strategyNone),
		itemsPath:      params.GetString("items_path", ""),
		pageParam:      params.GetString("page_param", "page"),
		pageSizeParam:  params.GetString("page_size_param", "per_page"),
		pageSize:       params.GetInt("page_size", 100),
		startPage:      params.GetInt("start_page", 1),
		maxPages:       params.GetInt("max_pages", 100),
		hasMorePath:    params.GetString("has_more_data_path", ""),
		cursorParam:    params.GetString("cursor_param", "cursor"),
		nextCursorPath: params.GetString("next_cursor_path", ""),
		nextLinkPath:   params.GetString("next_link_path", ""),
	}
}

// extractOffset walks numbered pages. Stop conditions per iteration, in
// order: no items on the page, the has-more check reports the end, or the
// page counter passes maxPages.
func (e *Extractor) extractOffset(ctx context.Context) ([]models.Record, error) {
	var all []models.Record
	page := e.pagination.startPage

	for page <= e.pagination.maxPages {
		e.logger.Debug("retrieving page",
			zap.Int("page", page),
			zap.Int("max_pages", e.pagination.maxPages))

		pageParams := map[string]string{
			e.pagination.pageParam: strconv.Itoa(page),
		}
		if e.pagination.pageSizeParam != "" {
			pageParams[e.pagination.pageSizeParam] = strconv.Itoa(e.pagination.pageSize)
		}

		response, err := e.request(ctx, e.url, pageParams)
		if err != nil {
			return nil, err
		}

		items := e.resolver.Resolve(response, e.pagination.itemsPath)
		records := coerceRecords(items)
		if len(records) == 0 {
			e.logger.Debug("no more items", zap.Int("page", page))
			break
		}
		all = append(all, records...)

		if !e.hasMore(response) {
			e.logger.Debug("no more pages", zap.Int("page", page))
			break
		}
		page++
	}

	e.logger.Info("offset pagination finished",
		zap.Int("records", len(all)),
		zap.Int("pages", page))
	return all, nil
}

// hasMore decides whether another page follows the given response. An
// explicit flag wins when it resolves to a value; a string flag means
// "true"/"false" case-insensitively. Without a resolvable flag, a raw
// response shorter than the page size ends pagination.
//
// The fallback intentionally measures the length of the whole decoded
// response, not the extracted item list, matching the behavior callers of
// the original framework depend on.
func (e *Extractor) hasMore(response interface{}) bool {
	if e.pagination.hasMorePath != "" {
		flag := e.resolver.Resolve(response, e.pagination.hasMorePath)
		if flag != nil {
			return docpath.BoolFromFlag(flag)
		}
	}

	if e.pagination.pageSize > 0 && docpath.RawLength(response) < e.pagination.pageSize {
		return false
	}
	return true
}

// extractCursor follows server-issued cursors until one is absent. The
// cursor parameter is only attached once a cursor has been received; there
// is no iteration bound.
func (e *Extractor) extractCursor(ctx context.Context) ([]models.Record, error) {
	var all []models.Record
	var cursor interface{}

	for {
		pageParams := map[string]string{}
		if docpath.Truthy(cursor) {
			pageParams[e.pagination.cursorParam] = toString(cursor)
		}

		response, err := e.request(ctx, e.url, pageParams)
		if err != nil {
			return nil, err
		}

		items := e.resolver.Resolve(response, e.pagination.itemsPath)
		records := coerceRecords(items)
		if len(records) == 0 {
			e.logger.Debug("no more items")
			break
		}
		all = append(all, records...)

		cursor = e.resolver.Resolve(response, e.pagination.nextCursorPath)
		if !docpath.Truthy(cursor) {
			e.logger.Debug("no next cursor")
			break
		}
	}

	e.logger.Info("cursor pagination finished", zap.Int("records", len(all)))
	return all, nil
}

// extractLink follows full next-page URLs embedded in responses. The first
// request goes to the configured URL; subsequent requests fetch the resolved
// link directly.
func (e *Extractor) extractLink(ctx context.Context) ([]models.Record, error) {
	var all []models.Record
	nextURL := ""

	for {
		var (
			response interface{}
			err      error
		)
		if nextURL != "" {
			response, err = e.requestLink(ctx, nextURL)
		} else {
			response, err = e.request(ctx, e.url, nil)
		}
		if err != nil {
			return nil, err
		}

		items := e.resolver.Resolve(response, e.pagination.itemsPath)
		records := coerceRecords(items)
		if len(records) == 0 {
			e.logger.Debug("no more items")
			break
		}
		all = append(all, records...)

		link := e.resolver.Resolve(response, e.pagination.nextLinkPath)
		if !docpath.Truthy(link) {
			e.logger.Debug("no next link")
			break
		}
		nextURL = toString(link)
	}

	e.logger.Info("link pagination finished", zap.Int("records", len(all)))
	return all, nil
}

// toString renders a cursor or link value for use in a request.
func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}
