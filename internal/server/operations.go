package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sw33tLie/tabscope/pkg/controller"
	"github.com/sw33tLie/tabscope/pkg/core"
	"github.com/sw33tLie/tabscope/pkg/model"
)

// operationOutput carries the record even when the operation failed, so
// callers can see attempts and the failure reason.
type operationOutput struct {
	Body struct {
		Operation model.TabOperationRecord `json:"operation"`
		Error     string                   `json:"error,omitempty"`
	}
}

func recordResult(rec model.TabOperationRecord, err error) (*operationOutput, error) {
	if err != nil && rec.ID == "" {
		return nil, mapErr(err)
	}
	out := &operationOutput{}
	out.Body.Operation = rec
	if err != nil {
		out.Body.Error = err.Error()
	}
	return out, nil
}

func registerOperationHandlers(api huma.API, c *core.Core) {
	huma.Register(api, huma.Operation{OperationID: "execute-operation", Method: http.MethodPost, Path: "/api/v1/operations", Summary: "Close, activate or open a tab", Tags: []string{"Operations"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Type    string `json:"type" enum:"close,activate,create" required:"true"`
				Browser string `json:"browser" required:"true"`
				TabID   string `json:"tab_id,omitempty"`
				URL     string `json:"url,omitempty"`
			}
		}) (*operationOutput, error) {
			rec, err := c.Execute(ctx, controller.Request{
				Type:    model.OperationType(input.Body.Type),
				Browser: model.BrowserType(input.Body.Browser),
				TabID:   input.Body.TabID,
				URL:     input.Body.URL,
			})
			return recordResult(rec, err)
		})

	type operationIDInput struct {
		OperationID string `path:"operation_id"`
	}
	huma.Register(api, huma.Operation{OperationID: "undo-operation", Method: http.MethodPost, Path: "/api/v1/operations/{operation_id}/undo", Summary: "Undo a close or create", Tags: []string{"Operations"}},
		func(ctx context.Context, input *operationIDInput) (*operationOutput, error) {
			rec, err := c.Undo(ctx, input.OperationID)
			return recordResult(rec, err)
		})

	type recordOutput struct {
		Body model.TabOperationRecord
	}
	huma.Register(api, huma.Operation{OperationID: "get-operation", Method: http.MethodGet, Path: "/api/v1/operations/{operation_id}", Summary: "Get an operation record", Tags: []string{"Operations"}},
		func(ctx context.Context, input *operationIDInput) (*recordOutput, error) {
			rec, ok := c.Controller.Get(input.OperationID)
			if !ok {
				return nil, huma.Error404NotFound("no operation " + input.OperationID)
			}
			return &recordOutput{Body: rec}, nil
		})

	type historyOutput struct {
		Body struct {
			Operations []model.TabOperationRecord `json:"operations"`
			Stats      controller.Stats           `json:"stats"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-operations", Method: http.MethodGet, Path: "/api/v1/operations", Summary: "Operation history, oldest first", Tags: []string{"Operations"}},
		func(ctx context.Context, input *struct{}) (*historyOutput, error) {
			out := &historyOutput{}
			out.Body.Operations = c.Controller.History()
			out.Body.Stats = c.Controller.Stats()
			return out, nil
		})

	type migrationOutput struct {
		Body struct {
			Migration controller.Migration `json:"migration"`
			Error     string               `json:"error,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "migrate-tab", Method: http.MethodPost, Path: "/api/v1/migrations", Summary: "Move a tab to another browser", Tags: []string{"Operations"}},
		func(ctx context.Context, input *struct {
			Body struct {
				From  string `json:"from" required:"true"`
				TabID string `json:"tab_id" required:"true"`
				To    string `json:"to" required:"true"`
			}
		}) (*migrationOutput, error) {
			m, err := c.Migrate(ctx, model.BrowserType(input.Body.From), input.Body.TabID, model.BrowserType(input.Body.To))
			if err != nil && m.Create.ID == "" {
				return nil, mapErr(err)
			}
			out := &migrationOutput{}
			out.Body.Migration = m
			if err != nil {
				out.Body.Error = err.Error()
			}
			return out, nil
		})
}
