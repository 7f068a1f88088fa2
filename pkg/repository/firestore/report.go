package firestore

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/domain/interfaces"
	"github.com/secmon-lab/standup/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ReportsCollection is the collection name without prefix
const ReportsCollection = "standup_reports"

type reportRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.ReportRepository = &reportRepository{}

func newReportRepository(client *firestore.Client) *reportRepository {
	return &reportRepository{
		client: client,
	}
}

// reportDoc is the Firestore persistence model. The analysis response is stored
// as JSON bytes because its nested optional fields do not map well to documents.
type reportDoc struct {
	ID           string    `firestore:"id"`
	ChatID       string    `firestore:"chat_id"`
	From         string    `firestore:"from"`
	To           string    `firestore:"to"`
	Source       string    `firestore:"source"`
	MessageCount int       `firestore:"message_count"`
	StandupCount int       `firestore:"standup_count"`
	MemberCount  int       `firestore:"member_count"`
	Response     []byte    `firestore:"response"`
	CreatedAt    time.Time `firestore:"created_at"`
}

// CollectionName returns the collection name with an optional prefix
func CollectionName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

func (r *reportRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(CollectionName(r.collectionPrefix, ReportsCollection))
}

func toReportDoc(report *model.Report) (*reportDoc, error) {
	raw, err := json.Marshal(report.Response)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal analysis response", goerr.V(model.ReportIDKey, report.ID))
	}
	return &reportDoc{
		ID:           string(report.ID),
		ChatID:       report.ChatID,
		From:         report.From,
		To:           report.To,
		Source:       string(report.Source),
		MessageCount: report.Usage.MessageCount,
		StandupCount: report.Usage.StandupCount,
		MemberCount:  report.Usage.MemberCount,
		Response:     raw,
		CreatedAt:    report.CreatedAt,
	}, nil
}

func fromReportDoc(doc *reportDoc) (*model.Report, error) {
	var resp *model.CombinedAnalysisResponse
	if len(doc.Response) > 0 {
		if err := json.Unmarshal(doc.Response, &resp); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal analysis response", goerr.V(model.ReportIDKey, doc.ID))
		}
	}
	return &model.Report{
		ID:     model.ReportID(doc.ID),
		ChatID: doc.ChatID,
		From:   doc.From,
		To:     doc.To,
		Source: model.ReportSource(doc.Source),
		Usage: model.AnalysisUsage{
			MessageCount: doc.MessageCount,
			StandupCount: doc.StandupCount,
			MemberCount:  doc.MemberCount,
		},
		Response:  resp,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (r *reportRepository) Put(ctx context.Context, report *model.Report) error {
	if report == nil || report.ID == "" {
		return goerr.New("report ID is required")
	}

	doc, err := toReportDoc(report)
	if err != nil {
		return err
	}

	if _, err := r.collection().Doc(doc.ID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to save report", goerr.V(model.ReportIDKey, report.ID))
	}
	return nil
}

func (r *reportRepository) Get(ctx context.Context, id model.ReportID) (*model.Report, error) {
	snap, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "report not found", goerr.V(model.ReportIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get report", goerr.V(model.ReportIDKey, id))
	}

	var doc reportDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal report", goerr.V(model.ReportIDKey, id))
	}
	return fromReportDoc(&doc)
}

func (r *reportRepository) ListByChat(ctx context.Context, chatID string, limit int) ([]*model.Report, error) {
	q := r.collection().Where("chat_id", "==", chatID).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var reports []*model.Report
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate reports", goerr.V(model.ChatIDKey, chatID))
		}

		var doc reportDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal report", goerr.V("docID", snap.Ref.ID))
		}
		report, err := fromReportDoc(&doc)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	return reports, nil
}

func (r *reportRepository) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	iter := r.collection().Where("created_at", "<", t).Documents(ctx)
	defer iter.Stop()

	var refs []*firestore.DocumentRef
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, goerr.Wrap(err, "failed to iterate expired reports")
		}
		refs = append(refs, snap.Ref)
	}

	if len(refs) == 0 {
		return 0, nil
	}

	bulkWriter := r.client.BulkWriter(ctx)
	defer bulkWriter.End()

	for _, ref := range refs {
		if _, err := bulkWriter.Delete(ref); err != nil {
			return 0, goerr.Wrap(err, "failed to enqueue report delete", goerr.V("docID", ref.ID))
		}
	}
	bulkWriter.Flush()

	return len(refs), nil
}
