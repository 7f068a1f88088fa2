package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/domain/model"
	"github.com/secmon-lab/standup/pkg/usecase"
)

const (
	maxAnalyzeBodySize = 1 << 20
	defaultReportLimit = 20
)

type analyzeResponse struct {
	Success  bool                            `json:"success"`
	Data     *model.CombinedAnalysisResponse `json:"data"`
	Usage    model.AnalysisUsage             `json:"usage"`
	ReportID model.ReportID                  `json:"reportId"`
	Source   model.ReportSource              `json:"source"`
}

func analyzeChatHandler(uc *usecase.AnalysisUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var input usecase.AnalyzeInput
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBodySize)).Decode(&input); err != nil {
			writeError(ctx, w, goerr.Wrap(errBadRequest, "request body must be JSON", goerr.V("error", err.Error())))
			return
		}
		if input.AccessToken == "" {
			if token, ok := bearerToken(r); ok {
				input.AccessToken = token
			}
		}

		result, err := uc.Analyze(ctx, input)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		writeJSON(w, r, http.StatusOK, &analyzeResponse{
			Success:  true,
			Data:     result.Response,
			Usage:    result.Usage,
			ReportID: result.ReportID,
			Source:   result.Source,
		})
	}
}

func listReportsHandler(uc *usecase.AnalysisUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chatID, err := chatIDParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		limit, err := intParam(r, "limit", defaultReportLimit)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		reports, err := uc.ListReports(ctx, chatID, limit)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		if reports == nil {
			reports = []*model.Report{}
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"reports": reports})
	}
}

func getReportHandler(uc *usecase.AnalysisUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		report, err := uc.GetReport(ctx, model.ReportID(chi.URLParam(r, "reportID")))
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(w, r, http.StatusOK, report)
	}
}
