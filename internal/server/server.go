package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"wishline/internal/domain"
	"wishline/internal/engine"
	"wishline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"conflict"`
	Message string         `json:"message" example:"negotiation is not pending"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Wishline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Wishline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerUsers(group, cfg.Engine)
	registerCategories(group, cfg.Engine)
	registerWishes(group, cfg.Engine)
	registerMatches(group, cfg.Engine)
	registerPeriods(group, cfg.Engine)
	registerAssignments(group, cfg.Engine)
	registerNegotiations(group, cfg.Engine)
	registerExecutions(group, cfg.Engine)
	registerRankings(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerMe(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch engine.KindOf(err) {
	case engine.KindValidation:
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), nil)
	case engine.KindConflict:
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	case engine.KindForbidden:
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	case engine.KindNotFound:
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "unique") {
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	open := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Wishline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Register user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.CreateUser(ctx, engine.UserCreateOptions{
			Nickname:           input.Body.Nickname,
			BirthDate:          input.Body.BirthDate,
			IsPublicModeActive: input.Body.IsPublicModeActive,
			ActorID:            actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u, u.IsAdult(e.Now()))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
	}, func(ctx context.Context, input *struct {
		Active bool `query:"active"`
		Public bool `query:"public"`
	}) (*struct {
		Body listBody[UserResponse] `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListUsers(ctx, repo.UserFilters{ActiveOnly: input.Active, PublicMode: input.Public})
		if err != nil {
			return nil, handleError(err)
		}
		body := listBody[UserResponse]{Items: []UserResponse{}}
		for _, u := range items {
			body.Items = append(body.Items, userResponse(u, u.IsAdult(e.Now())))
		}
		return &struct {
			Body listBody[UserResponse] `json:"body"`
		}{Body: body}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}",
		Summary:     "Get user",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		u, err := e.Repo.GetUser(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u, u.IsAdult(e.Now()))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPatch,
		Path:        "/users/{user_id}",
		Summary:     "Update user flags",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string            `path:"user_id"`
		Body   UpdateUserRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if actorID != input.UserID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "users may only update themselves", nil)
		}
		u, err := e.SetUserFlags(ctx, input.UserID, input.Body.IsActive, input.Body.IsPublicModeActive, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u, u.IsAdult(e.Now()))}, nil
	})
}

func registerCategories(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-category",
		Method:        http.MethodPost,
		Path:          "/categories",
		Summary:       "Create category",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateCategoryRequest `json:"body"`
	}) (*struct {
		Body domain.Category `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateCategory(ctx, engine.CategoryCreateOptions{
			Name:               input.Body.Name,
			Description:        input.Body.Description,
			IsAdult:            input.Body.IsAdult,
			MaxWishesPerPeriod: input.Body.MaxWishesPerPeriod,
			MinDaysToComplete:  input.Body.MinDaysToComplete,
			MaxDaysToComplete:  input.Body.MaxDaysToComplete,
			ActorID:            actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Category `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-categories",
		Method:      http.MethodGet,
		Path:        "/categories",
		Summary:     "List categories",
	}, func(ctx context.Context, input *struct {
		Active       bool `query:"active"`
		ExcludeAdult bool `query:"exclude_adult"`
	}) (*struct {
		Body listBody[domain.Category] `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListCategories(ctx, repo.CategoryFilters{ActiveOnly: input.Active, ExcludeAdult: input.ExcludeAdult})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Category{}
		}
		return &struct {
			Body listBody[domain.Category] `json:"body"`
		}{Body: listBody[domain.Category]{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "seed-categories",
		Method:      http.MethodPost,
		Path:        "/categories/seed",
		Summary:     "Seed the configured category catalog",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]int `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.SeedCategories(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]int `json:"body"`
		}{Body: map[string]int{"created": n}}, nil
	})
}

func registerWishes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-wish",
		Method:        http.MethodPost,
		Path:          "/wishes",
		Summary:       "Create wish",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateWishRequest `json:"body"`
	}) (*struct {
		Body domain.Wish `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.CreateWish(ctx, engine.WishCreateOptions{
			OwnerID:     actorID,
			CategoryID:  input.Body.CategoryID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Wish `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-wishes",
		Method:      http.MethodGet,
		Path:        "/wishes",
		Summary:     "List wishes",
	}, func(ctx context.Context, input *struct {
		UserID     string `query:"user_id"`
		CategoryID string `query:"category_id"`
		Active     bool   `query:"active"`
	}) (*struct {
		Body listBody[domain.Wish] `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		userID := input.UserID
		if userID == "" {
			userID = actorID
		}
		items, err := e.Repo.ListWishes(ctx, repo.WishFilters{UserID: userID, CategoryID: input.CategoryID, ActiveOnly: input.Active})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Wish{}
		}
		return &struct {
			Body listBody[domain.Wish] `json:"body"`
		}{Body: listBody[domain.Wish]{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-wish",
		Method:      http.MethodGet,
		Path:        "/wishes/{wish_id}",
		Summary:     "Get wish",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WishID string `path:"wish_id"`
	}) (*struct {
		Body domain.Wish `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		w, err := e.Repo.GetWish(ctx, input.WishID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Wish `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-wish",
		Method:      http.MethodPatch,
		Path:        "/wishes/{wish_id}",
		Summary:     "Update wish",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WishID string            `path:"wish_id"`
		Body   UpdateWishRequest `json:"body"`
	}) (*struct {
		Body domain.Wish `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.Repo.GetWish(ctx, input.WishID)
		if err != nil {
			return nil, handleError(err)
		}
		if w.UserID != actorID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "only the owner may update a wish", nil)
		}
		if input.Body.IsActive != nil {
			w, err = e.SetWishActive(ctx, w.ID, *input.Body.IsActive, actorID)
			if err != nil {
				return nil, handleError(err)
			}
		}
		return &struct {
			Body domain.Wish `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-wish",
		Method:        http.MethodDelete,
		Path:          "/wishes/{wish_id}",
		Summary:       "Delete a wish that has no assignments",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusConflict, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WishID string `path:"wish_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteWish(ctx, input.WishID, actorID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerMatches(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-match",
		Method:        http.MethodPost,
		Path:          "/matches",
		Summary:       "Propose match",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusConflict, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateMatchRequest `json:"body"`
	}) (*struct {
		Body domain.Match `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.CreateMatch(ctx, engine.MatchCreateOptions{
			UserAID:            actorID,
			UserBID:            input.Body.UserID,
			Mode:               input.Body.Mode,
			PrivateCategoryIDs: input.Body.PrivateCategoryIDs,
			PrivatePeriodDays:  input.Body.PrivatePeriodDays,
			ActorID:            actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Match `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-matches",
		Method:      http.MethodGet,
		Path:        "/matches",
		Summary:     "List the caller's matches",
	}, func(ctx context.Context, input *struct {
		Mode   string `query:"mode" enum:"private,public,"`
		Status string `query:"status" enum:"pending,accepted,rejected,blocked,"`
	}) (*struct {
		Body listBody[domain.Match] `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListMatches(ctx, repo.MatchFilters{Mode: input.Mode, Status: input.Status, Participant: actorID})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Match{}
		}
		return &struct {
			Body listBody[domain.Match] `json:"body"`
		}{Body: listBody[domain.Match]{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-match",
		Method:      http.MethodGet,
		Path:        "/matches/{match_id}",
		Summary:     "Get match",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MatchID string `path:"match_id"`
	}) (*struct {
		Body domain.Match `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		m, err := e.Repo.GetMatch(ctx, input.MatchID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Match `json:"body"`
		}{Body: m}, nil
	})

	respond := func(opID, pathSuffix, summary string, do func(context.Context, string, string) (domain.Match, error)) {
		huma.Register(api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodPost,
			Path:        "/matches/{match_id}/" + pathSuffix,
			Summary:     summary,
			Errors:      []int{http.StatusConflict, http.StatusForbidden, http.StatusNotFound},
		}, func(ctx context.Context, input *struct {
			MatchID string `path:"match_id"`
		}) (*struct {
			Body domain.Match `json:"body"`
		}, error) {
			actorID, authErr := actorFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			m, err := do(ctx, input.MatchID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.Match `json:"body"`
			}{Body: m}, nil
		})
	}
	respond("accept-match", "accept", "Accept match", e.AcceptMatch)
	respond("reject-match", "reject", "Reject match", e.RejectMatch)
	respond("block-match", "block", "Block match", e.BlockMatch)

	huma.Register(api, huma.Operation{
		OperationID: "set-match-agreement",
		Method:      http.MethodPut,
		Path:        "/matches/{match_id}/agreement",
		Summary:     "Replace the private agreement",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		MatchID string                `path:"match_id"`
		Body    MatchAgreementRequest `json:"body"`
	}) (*struct {
		Body domain.Match `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.SetMatchAgreement(ctx, input.MatchID, input.Body.CategoryIDs, input.Body.PeriodDays, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Match `json:"body"`
		}{Body: m}, nil
	})
}

func registerPeriods(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "run-period",
		Method:      http.MethodPost,
		Path:        "/periods/run",
		Summary:     "Run one allocation cycle",
		Errors:      []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body RunPeriodRequest `json:"body"`
	}) (*struct {
		Body engine.RunSummary `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		summary, err := e.RunCycle(ctx, engine.RunOptions{
			Days:      input.Body.Days,
			StartDate: input.Body.StartDate,
			DryRun:    input.Body.DryRun,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.RunSummary `json:"body"`
		}{Body: summary}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-periods",
		Method:      http.MethodGet,
		Path:        "/periods",
		Summary:     "List periods",
	}, func(ctx context.Context, input *struct {
		MatchID string `query:"match_id"`
		Global  bool   `query:"global"`
		Active  bool   `query:"active"`
		Limit   int    `query:"limit" default:"50"`
	}) (*struct {
		Body listBody[domain.Period] `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListPeriods(ctx, repo.PeriodFilters{
			MatchID:    input.MatchID,
			GlobalOnly: input.Global,
			ActiveOnly: input.Active,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Period{}
		}
		return &struct {
			Body listBody[domain.Period] `json:"body"`
		}{Body: listBody[domain.Period]{Items: items}}, nil
	})
}

func registerAssignments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-assignments",
		Method:      http.MethodGet,
		Path:        "/assignments",
		Summary:     "List the caller's assignments",
	}, func(ctx context.Context, input *struct {
		Role     string `query:"role" enum:"executor,owner," doc:"executor lists assignments to fulfill, owner lists assignments over own wishes"`
		PeriodID string `query:"period_id"`
		Open     bool   `query:"open" doc:"only assignments that are neither completed nor rejected"`
		Limit    int    `query:"limit" default:"50"`
	}) (*struct {
		Body listBody[domain.Assignment] `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f := repo.AssignmentFilters{PeriodID: input.PeriodID, Limit: input.Limit}
		if input.Role == "owner" {
			f.OwnerID = actorID
		} else {
			f.AssignedTo = actorID
		}
		if input.Open {
			no := false
			f.Completed = &no
			f.Rejected = &no
		}
		items, err := e.Repo.ListAssignments(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Assignment{}
		}
		return &struct {
			Body listBody[domain.Assignment] `json:"body"`
		}{Body: listBody[domain.Assignment]{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-assignment",
		Method:      http.MethodGet,
		Path:        "/assignments/{assignment_id}",
		Summary:     "Get assignment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssignmentID string `path:"assignment_id"`
	}) (*struct {
		Body domain.Assignment `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		a, err := e.Repo.GetAssignment(ctx, input.AssignmentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Assignment `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-assignment",
		Method:      http.MethodPost,
		Path:        "/assignments/{assignment_id}/reject",
		Summary:     "Reject a public assignment",
		Errors:      []int{http.StatusConflict, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssignmentID string `path:"assignment_id"`
	}) (*struct {
		Body domain.Assignment `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.RejectAssignment(ctx, input.AssignmentID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Assignment `json:"body"`
		}{Body: a}, nil
	})
}

func registerNegotiations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "propose-negotiation",
		Method:        http.MethodPost,
		Path:          "/assignments/{assignment_id}/negotiations",
		Summary:       "Propose a date/time",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusConflict, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		AssignmentID string                    `path:"assignment_id"`
		Body         ProposeNegotiationRequest `json:"body"`
	}) (*struct {
		Body domain.Negotiation `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.ProposeNegotiation(ctx, engine.NegotiationProposeOptions{
			AssignmentID: input.AssignmentID,
			ActorID:      actorID,
			ProposedDate: input.Body.ProposedDate,
			ProposedTime: input.Body.ProposedTime,
			Message:      input.Body.Message,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Negotiation `json:"body"`
		}{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-negotiations",
		Method:      http.MethodGet,
		Path:        "/assignments/{assignment_id}/negotiations",
		Summary:     "Negotiation history, newest first",
	}, func(ctx context.Context, input *struct {
		AssignmentID string `path:"assignment_id"`
	}) (*struct {
		Body listBody[domain.Negotiation] `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListNegotiations(ctx, input.AssignmentID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Negotiation{}
		}
		return &struct {
			Body listBody[domain.Negotiation] `json:"body"`
		}{Body: listBody[domain.Negotiation]{Items: items}}, nil
	})

	respond := func(opID, pathSuffix, summary string, accept bool) {
		huma.Register(api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodPost,
			Path:        "/negotiations/{negotiation_id}/" + pathSuffix,
			Summary:     summary,
			Errors:      []int{http.StatusConflict, http.StatusForbidden, http.StatusNotFound},
		}, func(ctx context.Context, input *struct {
			NegotiationID string                    `path:"negotiation_id"`
			Body          RespondNegotiationRequest `json:"body"`
		}) (*struct {
			Body domain.Negotiation `json:"body"`
		}, error) {
			actorID, authErr := actorFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			n, err := e.RespondNegotiation(ctx, engine.NegotiationRespondOptions{
				NegotiationID:   input.NegotiationID,
				ActorID:         actorID,
				Accept:          accept,
				ResponseMessage: input.Body.ResponseMessage,
			})
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.Negotiation `json:"body"`
			}{Body: n}, nil
		})
	}
	respond("accept-negotiation", "accept", "Accept negotiation", true)
	respond("reject-negotiation", "reject", "Reject negotiation", false)
}

func registerExecutions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "record-execution",
		Method:        http.MethodPost,
		Path:          "/assignments/{assignment_id}/execution",
		Summary:       "Record execution and close the assignment",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusConflict, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		AssignmentID string                 `path:"assignment_id"`
		Body         RecordExecutionRequest `json:"body"`
	}) (*struct {
		Body domain.Execution `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		exec, err := e.RecordExecution(ctx, engine.ExecutionRecordOptions{
			AssignmentID:      input.AssignmentID,
			ActorID:           actorID,
			CompletedDate:     input.Body.CompletedDate,
			CompletedTime:     input.Body.CompletedTime,
			Rating:            input.Body.Rating,
			CommentByCreator:  input.Body.CommentByCreator,
			CommentByExecutor: input.Body.CommentByExecutor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Execution `json:"body"`
		}{Body: exec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-execution",
		Method:      http.MethodGet,
		Path:        "/assignments/{assignment_id}/execution",
		Summary:     "Get the execution of an assignment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssignmentID string `path:"assignment_id"`
	}) (*struct {
		Body domain.Execution `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		exec, err := e.Repo.GetExecutionByAssignment(ctx, input.AssignmentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Execution `json:"body"`
		}{Body: exec}, nil
	})
}

func registerRankings(api huma.API, e engine.Engine) {
	rank := func(opID, pathSuffix, summary string, do func(context.Context) ([]domain.RankingEntry, error)) {
		huma.Register(api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodGet,
			Path:        "/rankings/" + pathSuffix,
			Summary:     summary,
		}, func(ctx context.Context, _ *struct{}) (*struct {
			Body listBody[domain.RankingEntry] `json:"body"`
		}, error) {
			if _, authErr := actorFromContext(ctx); authErr != nil {
				return nil, authErr
			}
			items, err := do(ctx)
			if err != nil {
				return nil, handleError(err)
			}
			if items == nil {
				items = []domain.RankingEntry{}
			}
			return &struct {
				Body listBody[domain.RankingEntry] `json:"body"`
			}{Body: listBody[domain.RankingEntry]{Items: items}}, nil
		})
	}
	rank("rank-most-completed", "most-completed", "Top users by completed assignments", e.RankMostCompleted)
	rank("rank-best-rated", "best-rated", "Top users by average rating", e.RankBestRated)
	rank("rank-fastest-completion", "fastest-completion", "Top users by completion speed", e.RankFastestCompletion)
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"user,category,wish,match,period,assignment,negotiation,execution,"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body listBody[EventResponse] `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.LatestEvents(ctx, normalizeLimit(input.Limit), input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		body := listBody[EventResponse]{Items: []EventResponse{}}
		for _, evt := range items {
			body.Items = append(body.Items, eventResponse(evt))
		}
		return &struct {
			Body listBody[EventResponse] `json:"body"`
		}{Body: body}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "The authenticated user",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		actorID, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.Repo.GetUser(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u, u.IsAdult(e.Now()))}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		userID := strings.TrimSpace(input.Body.UserID)
		if userID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "user_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, userID)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
