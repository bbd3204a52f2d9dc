package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sw33tLie/tabscope/pkg/core"
	"github.com/sw33tLie/tabscope/pkg/model"
	"github.com/sw33tLie/tabscope/pkg/storage"
)

type pageOutput struct {
	Body model.UnifiedPageInfo
}

type pageIDInput struct {
	PageID string `path:"page_id"`
}

func registerPageHandlers(api huma.API, c *core.Core) {
	type listPagesInput struct {
		Kind     string `query:"kind" enum:"active_tab,bookmark,closed_tab,mixed" doc:"Filter by source kind"`
		Browser  string `query:"browser"`
		Category string `query:"category"`
		Limit    int    `query:"limit" default:"50" minimum:"0" maximum:"1000"`
		Offset   int    `query:"offset" minimum:"0"`
	}
	type listPagesOutput struct {
		Body struct {
			Pages []model.UnifiedPageInfo `json:"pages"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-pages", Method: http.MethodGet, Path: "/api/v1/pages", Summary: "List unified pages", Tags: []string{"Pages"}},
		func(ctx context.Context, input *listPagesInput) (*listPagesOutput, error) {
			pages, err := c.ListPages(ctx, storage.ListOptions{
				Kind:     model.SourceKind(input.Kind),
				Browser:  model.BrowserType(input.Browser),
				Category: input.Category,
				Limit:    input.Limit,
				Offset:   input.Offset,
			})
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listPagesOutput{}
			out.Body.Pages = pages
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-page", Method: http.MethodGet, Path: "/api/v1/pages/{page_id}", Summary: "Get a page by id", Tags: []string{"Pages"}},
		func(ctx context.Context, input *pageIDInput) (*pageOutput, error) {
			p, err := c.GetPage(ctx, input.PageID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &pageOutput{Body: p}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "lookup-page", Method: http.MethodGet, Path: "/api/v1/lookup", Summary: "Find the page for a url", Tags: []string{"Pages"}},
		func(ctx context.Context, input *struct {
			URL string `query:"url" required:"true"`
		}) (*pageOutput, error) {
			p, err := c.GetPageByURL(ctx, input.URL)
			if err != nil {
				return nil, mapErr(err)
			}
			return &pageOutput{Body: p}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-page", Method: http.MethodDelete, Path: "/api/v1/pages/{page_id}", Summary: "Delete a page", Tags: []string{"Pages"}},
		func(ctx context.Context, input *pageIDInput) (*struct{}, error) {
			n, err := c.DeletePages(ctx, []string{input.PageID})
			if err != nil {
				return nil, mapErr(err)
			}
			if n == 0 {
				return nil, huma.Error404NotFound("no page " + input.PageID)
			}
			return &struct{}{}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "analyze-page", Method: http.MethodPost, Path: "/api/v1/pages/{page_id}/analyze", Summary: "Fetch and analyze a page", Tags: []string{"Pages"}},
		func(ctx context.Context, input *pageIDInput) (*pageOutput, error) {
			p, err := c.AnalyzePage(ctx, input.PageID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &pageOutput{Body: p}, nil
		})

	type summaryOutput struct {
		Body model.ContentSummary
	}
	huma.Register(api, huma.Operation{OperationID: "get-summary", Method: http.MethodGet, Path: "/api/v1/pages/{page_id}/summary", Summary: "Get the content summary of a page", Tags: []string{"Pages"}},
		func(ctx context.Context, input *pageIDInput) (*summaryOutput, error) {
			s, ok, err := c.GetSummary(ctx, input.PageID)
			if err != nil {
				return nil, mapErr(err)
			}
			if !ok {
				return nil, huma.Error404NotFound("page " + input.PageID + " has not been analyzed")
			}
			return &summaryOutput{Body: s}, nil
		})

	type archiveOutput struct {
		Body model.ContentArchive
	}
	huma.Register(api, huma.Operation{OperationID: "archive-page", Method: http.MethodPost, Path: "/api/v1/pages/{page_id}/archive", Summary: "Archive the current content of a page", Tags: []string{"Pages"}},
		func(ctx context.Context, input *pageIDInput) (*archiveOutput, error) {
			a, err := c.ArchivePage(ctx, input.PageID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &archiveOutput{Body: a}, nil
		})

	type searchOutput struct {
		Body core.SearchResults
	}
	huma.Register(api, huma.Operation{OperationID: "search", Method: http.MethodGet, Path: "/api/v1/search", Summary: "Full-text search over pages, archives and history", Tags: []string{"Pages"}},
		func(ctx context.Context, input *struct {
			Query string `query:"q" required:"true"`
			Limit int    `query:"limit" default:"20" minimum:"1" maximum:"500"`
		}) (*searchOutput, error) {
			res, err := c.Search(ctx, input.Query, input.Limit)
			if err != nil {
				return nil, mapErr(err)
			}
			return &searchOutput{Body: res}, nil
		})
}

func registerMiscHandlers(api huma.API, c *core.Core) {
	type statsOutput struct {
		Body core.Stats
	}
	huma.Register(api, huma.Operation{OperationID: "get-stats", Method: http.MethodGet, Path: "/api/v1/stats", Summary: "Store, cache and operation statistics", Tags: []string{"Misc"}},
		func(ctx context.Context, input *struct{}) (*statsOutput, error) {
			st, err := c.Stats(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statsOutput{Body: st}, nil
		})

	type browsersOutput struct {
		Body struct {
			Browsers []model.BrowserInfo `json:"browsers"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-browsers", Method: http.MethodGet, Path: "/api/v1/browsers", Summary: "List configured browsers", Tags: []string{"Browsers"}},
		func(ctx context.Context, input *struct{}) (*browsersOutput, error) {
			out := &browsersOutput{}
			out.Body.Browsers = []model.BrowserInfo{}
			for _, conn := range c.Connectors() {
				out.Body.Browsers = append(out.Body.Browsers, conn.Info())
			}
			return out, nil
		})

	type tabsOutput struct {
		Body struct {
			Tabs []model.TabInfo `json:"tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/browsers/{browser}/tabs", Summary: "List the open tabs of a browser", Tags: []string{"Browsers"}},
		func(ctx context.Context, input *struct {
			Browser string `path:"browser"`
		}) (*tabsOutput, error) {
			conn, err := c.Connector(model.BrowserType(input.Browser))
			if err != nil {
				return nil, mapErr(err)
			}
			if !conn.IsConnected() {
				if err := conn.Connect(ctx); err != nil {
					return nil, mapErr(err)
				}
			}
			tabs, err := conn.GetTabs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &tabsOutput{}
			out.Body.Tabs = tabs
			return out, nil
		})
}
