package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sw33tLie/tabscope/pkg/core"
	"github.com/sw33tLie/tabscope/pkg/model"
)

func registerGroupHandlers(api huma.API, c *core.Core) {
	type groupsOutput struct {
		Body struct {
			Groups []model.SmartGroup `json:"groups"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-groups", Method: http.MethodGet, Path: "/api/v1/groups", Summary: "List smart groups", Tags: []string{"Groups"}},
		func(ctx context.Context, input *struct{}) (*groupsOutput, error) {
			groups, err := c.Store.ListGroups(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &groupsOutput{}
			out.Body.Groups = groups
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "rebuild-groups", Method: http.MethodPost, Path: "/api/v1/groups/rebuild", Summary: "Recompute automatic groups", Tags: []string{"Groups"}},
		func(ctx context.Context, input *struct{}) (*groupsOutput, error) {
			groups, err := c.RebuildGroups(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &groupsOutput{}
			out.Body.Groups = groups
			return out, nil
		})

	type groupIDInput struct {
		GroupID string `path:"group_id"`
	}
	type groupPagesOutput struct {
		Body struct {
			Group model.SmartGroup        `json:"group"`
			Pages []model.UnifiedPageInfo `json:"pages"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-group", Method: http.MethodGet, Path: "/api/v1/groups/{group_id}", Summary: "Get a group with its pages", Tags: []string{"Groups"}},
		func(ctx context.Context, input *groupIDInput) (*groupPagesOutput, error) {
			g, err := c.GetGroup(ctx, input.GroupID)
			if err != nil {
				return nil, mapErr(err)
			}
			pages, err := c.GroupPages(ctx, g.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &groupPagesOutput{}
			out.Body.Group = g
			out.Body.Pages = pages
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "put-group", Method: http.MethodPut, Path: "/api/v1/groups/{group_id}", Summary: "Create or replace a manual group", Tags: []string{"Groups"}},
		func(ctx context.Context, input *struct {
			GroupID string `path:"group_id"`
			Body    struct {
				Name        string   `json:"name" required:"true"`
				Description string   `json:"description,omitempty"`
				PageIDs     []string `json:"page_ids,omitempty"`
			}
		}) (*struct{}, error) {
			g := model.SmartGroup{ID: input.GroupID, Name: input.Body.Name, Description: input.Body.Description}
			if err := c.SaveManualGroup(ctx, g, input.Body.PageIDs); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})
}
