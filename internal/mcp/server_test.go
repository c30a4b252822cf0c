package mcp

import (
	"context"
	"errors"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/redline/internal/model"
	"github.com/ppiankov/redline/internal/policy"
	"github.com/ppiankov/redline/internal/service"
)

func newTestServer(t *testing.T, defaultDomain string) *Server {
	t.Helper()
	registry, err := service.OpenAll([]string{"banking", "pharma"}, service.Options{
		AuditDir: t.TempDir(),
		Policies: policy.NewStore(""),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })
	return New(registry, defaultDomain, "test")
}

func TestRewriteAndReviewTools(t *testing.T) {
	s := newTestServer(t, "banking")
	ctx := context.Background()

	result, out, err := s.handleRewrite(ctx, &mcpsdk.CallToolRequest{}, RewriteInput{
		Email:    "Guaranteed returns, no risk, and you should buy today.",
		Audience: "client",
	})
	require.NoError(t, err)
	assert.Nil(t, result)
	require.NotNil(t, out.Result)
	assert.Equal(t, model.RiskHigh, out.Result.RiskLevel)
	traceID := out.Result.TraceID

	result, rout, err := s.handleReview(ctx, &mcpsdk.CallToolRequest{}, ReviewInput{
		TraceID: traceID, Action: "approve", Reviewer: "agent",
	})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, "approve", rout.ReviewStatus)

	_, rec, err := s.handleGetRecord(ctx, &mcpsdk.CallToolRequest{}, GetRecordInput{Domain: "banking", TraceID: traceID})
	require.NoError(t, err)
	require.NotNil(t, rec.Record)
	assert.Equal(t, model.StatusApprove, rec.Record.ReviewStatus)

	_, list, err := s.handleListRecords(ctx, &mcpsdk.CallToolRequest{}, ListRecordsInput{})
	require.NoError(t, err)
	assert.Len(t, list.Records, 2)

	_, found, err := s.handleSearchByRisk(ctx, &mcpsdk.CallToolRequest{}, SearchInput{Risk: "high"})
	require.NoError(t, err)
	assert.Len(t, found.Records, 1)
}

func TestEditWithoutTextIsToolError(t *testing.T) {
	s := newTestServer(t, "banking")
	ctx := context.Background()

	_, out, err := s.handleRewrite(ctx, &mcpsdk.CallToolRequest{}, RewriteInput{Email: "Hello", Audience: "internal"})
	require.NoError(t, err)

	result, rout, err := s.handleReview(ctx, &mcpsdk.CallToolRequest{}, ReviewInput{
		TraceID: out.Result.TraceID, Action: "edit", Reviewer: "agent",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
	assert.Contains(t, rout.Error, "edited_email")
}

func TestUnknownTraceIsToolError(t *testing.T) {
	s := newTestServer(t, "banking")
	result, out, err := s.handleGetRecord(context.Background(), &mcpsdk.CallToolRequest{}, GetRecordInput{TraceID: "t-missing"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
	assert.Contains(t, out.Error, "not found")
}

func TestDomainResolution(t *testing.T) {
	s := newTestServer(t, "")
	ctx := context.Background()

	result, out, err := s.handleRewrite(ctx, &mcpsdk.CallToolRequest{}, RewriteInput{Email: "Hello", Audience: "hcp"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, out.Error, "domain is required")

	result, out, err = s.handleRewrite(ctx, &mcpsdk.CallToolRequest{}, RewriteInput{Domain: "retail", Email: "Hello", Audience: "hcp"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, out.Error, "not served")

	result, out, err = s.handleRewrite(ctx, &mcpsdk.CallToolRequest{}, RewriteInput{Domain: "pharma", Email: "Hello", Audience: "hcp"})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.True(t, out.Result.DisclaimerAdded)
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "invalid email: must not be empty", publicMessage(&model.ValidationError{Field: "email", Reason: "must not be empty"}))
	assert.Equal(t, "storage error", publicMessage(&model.StorageError{Op: "append record", Err: errors.New("/secret/path")}))
	assert.Equal(t, "upstream error", publicMessage(&model.UpstreamServiceError{Op: "generate", Err: errors.New("x")}))
}
