package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/redline/internal/model"
	"github.com/ppiankov/redline/internal/review"
	"github.com/ppiankov/redline/internal/service"
)

// --- Input/Output types ---

// RewriteInput defines parameters for the redline_rewrite tool.
type RewriteInput struct {
	Domain   string `json:"domain,omitempty" jsonschema:"policy domain (e.g. banking, pharma)"`
	Email    string `json:"email" jsonschema:"message text to rewrite"`
	Audience string `json:"audience" jsonschema:"intended audience (e.g. client, internal)"`
	Language string `json:"language,omitempty" jsonschema:"language code, default en"`
}

// RewriteOutput contains the rewrite result or the failure reason.
type RewriteOutput struct {
	Result *model.RewriteResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// GetRecordInput defines parameters for the redline_get_record tool.
type GetRecordInput struct {
	Domain  string `json:"domain,omitempty" jsonschema:"policy domain"`
	TraceID string `json:"trace_id" jsonschema:"trace id returned by redline_rewrite"`
}

// RecordOutput contains one audit record.
type RecordOutput struct {
	Record *model.AuditRecord `json:"record,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// ListRecordsInput defines parameters for the redline_list_records tool.
type ListRecordsInput struct {
	Domain string `json:"domain,omitempty" jsonschema:"policy domain"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum records, default 50"`
}

// SearchInput defines parameters for the redline_search_by_risk tool.
type SearchInput struct {
	Domain string `json:"domain,omitempty" jsonschema:"policy domain"`
	Risk   string `json:"risk" jsonschema:"risk level: low, medium or high"`
}

// RecordsOutput contains a list of audit records.
type RecordsOutput struct {
	Records []model.AuditRecord `json:"records"`
	Error   string              `json:"error,omitempty"`
}

// ReviewInput defines parameters for the redline_review tool.
type ReviewInput struct {
	Domain      string `json:"domain,omitempty" jsonschema:"policy domain"`
	TraceID     string `json:"trace_id" jsonschema:"trace id to review"`
	Action      string `json:"action" jsonschema:"approve, reject or edit"`
	Reviewer    string `json:"reviewer" jsonschema:"reviewer name"`
	Comment     string `json:"comment,omitempty" jsonschema:"review comment"`
	EditedEmail string `json:"edited_email,omitempty" jsonschema:"replacement text, required for edit"`
}

// ReviewOutput contains the new review status.
type ReviewOutput struct {
	TraceID      string `json:"trace_id,omitempty"`
	ReviewStatus string `json:"review_status,omitempty"`
	Error        string `json:"error,omitempty"`
}

// --- Handlers ---

func (s *Server) handleRewrite(ctx context.Context, req *mcpsdk.CallToolRequest, input RewriteInput) (*mcpsdk.CallToolResult, RewriteOutput, error) {
	svc, err := s.service(input.Domain)
	if err != nil {
		return toolError(RewriteOutput{Error: err.Error()})
	}
	res, err := svc.SubmitRewrite(ctx, model.RewriteRequest{
		Email:    input.Email,
		Audience: input.Audience,
		Language: input.Language,
	})
	if err != nil {
		return toolError(RewriteOutput{Error: publicMessage(err)})
	}
	return nil, RewriteOutput{Result: &res}, nil
}

func (s *Server) handleGetRecord(ctx context.Context, req *mcpsdk.CallToolRequest, input GetRecordInput) (*mcpsdk.CallToolResult, RecordOutput, error) {
	svc, err := s.service(input.Domain)
	if err != nil {
		return toolError(RecordOutput{Error: err.Error()})
	}
	rec, err := svc.GetRecord(ctx, input.TraceID)
	if err != nil {
		return toolError(RecordOutput{Error: publicMessage(err)})
	}
	return nil, RecordOutput{Record: &rec}, nil
}

func (s *Server) handleListRecords(ctx context.Context, req *mcpsdk.CallToolRequest, input ListRecordsInput) (*mcpsdk.CallToolResult, RecordsOutput, error) {
	svc, err := s.service(input.Domain)
	if err != nil {
		return toolError(RecordsOutput{Records: []model.AuditRecord{}, Error: err.Error()})
	}
	recs, err := svc.ListRecords(ctx, input.Limit)
	if err != nil {
		return toolError(RecordsOutput{Records: []model.AuditRecord{}, Error: publicMessage(err)})
	}
	return nil, RecordsOutput{Records: recs}, nil
}

func (s *Server) handleSearchByRisk(ctx context.Context, req *mcpsdk.CallToolRequest, input SearchInput) (*mcpsdk.CallToolResult, RecordsOutput, error) {
	svc, err := s.service(input.Domain)
	if err != nil {
		return toolError(RecordsOutput{Records: []model.AuditRecord{}, Error: err.Error()})
	}
	recs, err := svc.SearchByRisk(ctx, input.Risk)
	if err != nil {
		return toolError(RecordsOutput{Records: []model.AuditRecord{}, Error: publicMessage(err)})
	}
	return nil, RecordsOutput{Records: recs}, nil
}

func (s *Server) handleReview(ctx context.Context, req *mcpsdk.CallToolRequest, input ReviewInput) (*mcpsdk.CallToolResult, ReviewOutput, error) {
	svc, err := s.service(input.Domain)
	if err != nil {
		return toolError(ReviewOutput{Error: err.Error()})
	}
	out, err := svc.Review(ctx, review.Action{
		TraceID:     input.TraceID,
		Action:      input.Action,
		Reviewer:    input.Reviewer,
		Comment:     input.Comment,
		EditedEmail: input.EditedEmail,
	})
	if err != nil {
		return toolError(ReviewOutput{Error: publicMessage(err)})
	}
	return nil, ReviewOutput{TraceID: out.TraceID, ReviewStatus: string(out.ReviewStatus)}, nil
}

func (s *Server) service(domain string) (*service.Service, error) {
	if domain == "" {
		domain = s.defaultDomain
	}
	if domain == "" {
		return nil, fmt.Errorf("domain is required (served: %v)", s.registry.Domains())
	}
	svc, ok := s.registry.Get(domain)
	if !ok {
		return nil, fmt.Errorf("domain %q is not served", domain)
	}
	return svc, nil
}

func toolError[T any](out T) (*mcpsdk.CallToolResult, T, error) {
	return &mcpsdk.CallToolResult{IsError: true}, out, nil
}

// publicMessage keeps validation and not-found detail, and reduces server
// side failures to their class.
func publicMessage(err error) string {
	switch kind := service.Kind(err); kind {
	case "validation", "not_found":
		return err.Error()
	default:
		return kind + " error"
	}
}
