package http

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/domain/model"
	"github.com/secmon-lab/standup/pkg/usecase"
	"github.com/secmon-lab/standup/pkg/utils/errutil"
)

type pageResponse struct {
	Updates    []*model.StandupUpdate `json:"updates"`
	NextCursor string                 `json:"nextCursor,omitempty"`
	Projects   []string               `json:"projects"`
}

type missingResponse struct {
	Date    string              `json:"date"`
	Members []*model.TeamMember `json:"members"`
}

func newPageResponse(page *model.Page, filter model.FilterOptions) *pageResponse {
	updates := filter.Apply(page.Updates)
	projects := model.Projects(page.Updates)
	if projects == nil {
		projects = []string{}
	}
	return &pageResponse{
		Updates:    updates,
		NextCursor: page.NextCursor,
		Projects:   projects,
	}
}

func chatIDParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "chatID")
	chatID, err := url.PathUnescape(raw)
	if err != nil || chatID == "" {
		return "", goerr.Wrap(errBadRequest, "invalid chat ID", goerr.V(usecase.ChatIDKey, raw))
	}
	return chatID, nil
}

// filterParams reads search, member (repeatable), project, from and to
func filterParams(r *http.Request) (model.FilterOptions, error) {
	q := r.URL.Query()
	f := model.FilterOptions{
		SearchTerm: q.Get("search"),
		Members:    q["member"],
		Project:    q.Get("project"),
		From:       q.Get("from"),
		To:         q.Get("to"),
	}
	for _, d := range []string{f.From, f.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			return f, goerr.Wrap(model.ErrInvalidDateRange, "date must be YYYY-MM-DD", goerr.V(model.DateKey, d))
		}
	}
	if f.From != "" && f.To != "" && f.From > f.To {
		return f, goerr.Wrap(model.ErrInvalidDateRange, "from is after to", goerr.V("from", f.From), goerr.V("to", f.To))
	}
	return f, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, goerr.Wrap(errBadRequest, name+" must be a non-negative integer", goerr.V(name, raw))
	}
	return n, nil
}

func listStandupsHandler(uc *usecase.StandupUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chatID, err := chatIDParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		filter, err := filterParams(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		page, err := uc.FetchPage(ctx, chatID, tokenFrom(ctx), r.URL.Query().Get("cursor"))
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(w, r, http.StatusOK, newPageResponse(page, filter))
	}
}

func cachedStandupsHandler(uc *usecase.StandupUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chatID, err := chatIDParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		filter, err := filterParams(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		page, ok := uc.CachedPage(ctx, chatID)
		if !ok {
			writeJSON(w, r, http.StatusNotFound, errutil.ErrorResponse{
				Kind:    KindNotFound,
				Message: "no cached page for this chat",
			})
			return
		}
		writeJSON(w, r, http.StatusOK, newPageResponse(page, filter))
	}
}

func refreshStandupsHandler(uc *usecase.StandupUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chatID, err := chatIDParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		page, err := uc.Refresh(ctx, chatID, tokenFrom(ctx))
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(w, r, http.StatusOK, newPageResponse(page, model.FilterOptions{}))
	}
}

func allStandupsHandler(uc *usecase.StandupUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chatID, err := chatIDParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		pageSize, err := intParam(r, "pageSize", usecase.DefaultFetchAllPageSize)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		filter, err := filterParams(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		page, err := uc.FetchAll(ctx, chatID, tokenFrom(ctx), pageSize)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(w, r, http.StatusOK, newPageResponse(page, filter))
	}
}

func clearCacheHandler(uc *usecase.StandupUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chatID, err := chatIDParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		if err := uc.ClearCache(ctx, chatID); err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
	}
}

func chatInfoHandler(uc *usecase.StandupUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chatID, err := chatIDParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		chat, err := uc.GetChatInfo(ctx, chatID, tokenFrom(ctx))
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(w, r, http.StatusOK, chat)
	}
}

// connectionHandler reports whether the chat is readable with the bearer token
func connectionHandler(uc *usecase.StandupUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chatID, err := chatIDParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		writeJSON(w, r, http.StatusOK, map[string]bool{
			"connected": uc.TestConnection(ctx, chatID, tokenFrom(ctx)),
		})
	}
}

func membersHandler(uc *usecase.StandupUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chatID, err := chatIDParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		members, err := uc.ListMembers(ctx, chatID, tokenFrom(ctx))
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"members": members})
	}
}

// missingHandler lists members without an update on date, default today in UTC.
// Updates come from the cached page when present, otherwise from the first page.
func missingHandler(uc *usecase.StandupUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chatID, err := chatIDParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		date := r.URL.Query().Get("date")
		if date == "" {
			date = model.StandupDate(time.Now())
		}
		if _, err := time.Parse(model.DateLayout, date); err != nil {
			writeError(ctx, w, goerr.Wrap(errBadRequest, "date must be YYYY-MM-DD", goerr.V(model.DateKey, date)))
			return
		}

		token := tokenFrom(ctx)
		members, err := uc.ListMembers(ctx, chatID, token)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		page, ok := uc.CachedPage(ctx, chatID)
		if !ok {
			page, err = uc.FetchPage(ctx, chatID, token, "")
			if err != nil {
				writeError(ctx, w, err)
				return
			}
		}

		missing := model.MissingUpdates(members, page.Updates, date)
		if missing == nil {
			missing = []*model.TeamMember{}
		}
		writeJSON(w, r, http.StatusOK, &missingResponse{Date: date, Members: missing})
	}
}
