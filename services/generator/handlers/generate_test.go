// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the generation handlers

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ticketsmith/services/codegen"
	"github.com/AleutianAI/ticketsmith/services/generator/datatypes"
)

// stubPipeline is a canned-response Pipeline for handler tests.
type stubPipeline struct {
	result      *datatypes.GenerationResult
	generateErr error

	review    *codegen.ReviewOutcome
	reviewErr error

	testGen    *codegen.TestGenerationOutcome
	testGenErr error

	lastRequest *datatypes.GenerationRequest
}

func (s *stubPipeline) Generate(_ context.Context, req *datatypes.GenerationRequest) (*datatypes.GenerationResult, error) {
	s.lastRequest = req
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	return s.result, nil
}

func (s *stubPipeline) ReviewCode(_ context.Context, _, _ string) (*codegen.ReviewOutcome, error) {
	if s.reviewErr != nil {
		return nil, s.reviewErr
	}
	return s.review, nil
}

func (s *stubPipeline) ExplainCode(_ context.Context, _, _ string) (*codegen.ReviewOutcome, error) {
	if s.reviewErr != nil {
		return nil, s.reviewErr
	}
	return s.review, nil
}

func (s *stubPipeline) GenerateTestsFor(_ context.Context, _ []*datatypes.GeneratedFile, _ *datatypes.GenerationOptions) (*codegen.TestGenerationOutcome, error) {
	if s.testGenErr != nil {
		return nil, s.testGenErr
	}
	return s.testGen, nil
}

func newGenerateRouter(p Pipeline) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/v1/generate/code", GenerateCode(p))
	router.POST("/v1/generate/review", ReviewCode(p))
	router.POST("/v1/generate/explain", ExplainCode(p))
	router.POST("/v1/generate/test", GenerateTests(p))
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	jsonBody, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", path, bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// GenerateCode Tests
// =============================================================================

func TestGenerateCode_Success(t *testing.T) {
	stub := &stubPipeline{
		result: &datatypes.GenerationResult{
			Success:   true,
			TicketKey: "PROJ-123",
			GeneratedFiles: []*datatypes.GeneratedFile{
				datatypes.NewGeneratedFile("src/login.ts", "export {}", datatypes.FileTypeSource, "typescript", ""),
			},
			LLMTokensUsed: 42,
		},
	}
	router := newGenerateRouter(stub)

	w := postJSON(t, router, "/v1/generate/code", map[string]any{
		"ticket_data": map[string]any{
			"key":     "PROJ-123",
			"summary": "Add login form",
		},
		"user_context": map[string]any{
			"user_id": "u-1",
		},
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var response datatypes.GenerationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, "PROJ-123", response.TicketKey)
	assert.Len(t, response.GeneratedFiles, 1)

	require.NotNil(t, stub.lastRequest)
	assert.Equal(t, "PROJ-123", stub.lastRequest.TicketData.Key)
}

func TestGenerateCode_InvalidJSON(t *testing.T) {
	router := newGenerateRouter(&stubPipeline{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/generate/code", bytes.NewReader([]byte("{invalid json")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateCode_MissingTicketKey(t *testing.T) {
	router := newGenerateRouter(&stubPipeline{})

	w := postJSON(t, router, "/v1/generate/code", map[string]any{
		"ticket_data": map[string]any{
			"summary": "No key supplied",
		},
		"user_context": map[string]any{
			"user_id": "u-1",
		},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(t, response["error"])
}

func TestGenerateCode_PipelineRejection(t *testing.T) {
	stub := &stubPipeline{
		generateErr: codegen.ErrInvalidRequest,
	}
	router := newGenerateRouter(stub)

	w := postJSON(t, router, "/v1/generate/code", map[string]any{
		"ticket_data": map[string]any{
			"key":     "BAD KEY",
			"summary": "Malformed ticket key",
		},
		"user_context": map[string]any{
			"user_id": "u-1",
		},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateCode_PipelineFailureIsStructured(t *testing.T) {
	stub := &stubPipeline{
		result: &datatypes.GenerationResult{
			Success:      false,
			TicketKey:    "PROJ-9",
			ErrorMessage: "provider openai: rate_limited",
		},
	}
	router := newGenerateRouter(stub)

	w := postJSON(t, router, "/v1/generate/code", map[string]any{
		"ticket_data": map[string]any{
			"key":     "PROJ-9",
			"summary": "Rate limited run",
		},
		"user_context": map[string]any{
			"user_id": "u-1",
		},
	})

	// A well-formed request always gets a structured result body.
	assert.Equal(t, http.StatusOK, w.Code)

	var response datatypes.GenerationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Success)
	assert.Contains(t, response.ErrorMessage, "rate_limited")
}

// =============================================================================
// ReviewCode / ExplainCode Tests
// =============================================================================

func TestReviewCode_Success(t *testing.T) {
	stub := &stubPipeline{
		review: &codegen.ReviewOutcome{
			Review:     "Looks solid. Consider extracting the retry loop.",
			Chunks:     1,
			TokensUsed: 17,
		},
	}
	router := newGenerateRouter(stub)

	w := postJSON(t, router, "/v1/generate/review", map[string]any{
		"code":     "def add(a, b):\n    return a + b\n",
		"language": "python",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var response codegen.ReviewOutcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response.Review, "retry loop")
	assert.Equal(t, 1, response.Chunks)
}

func TestReviewCode_MissingCode(t *testing.T) {
	router := newGenerateRouter(&stubPipeline{})

	w := postJSON(t, router, "/v1/generate/review", map[string]any{
		"language": "python",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReviewCode_ProviderFailure(t *testing.T) {
	stub := &stubPipeline{
		reviewErr: errors.New("provider openai: timeout"),
	}
	router := newGenerateRouter(stub)

	w := postJSON(t, router, "/v1/generate/review", map[string]any{
		"code": "package main",
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestExplainCode_Success(t *testing.T) {
	stub := &stubPipeline{
		review: &codegen.ReviewOutcome{
			Review:     "This function sums two integers.",
			Chunks:     1,
			TokensUsed: 9,
		},
	}
	router := newGenerateRouter(stub)

	w := postJSON(t, router, "/v1/generate/explain", map[string]any{
		"code":     "func add(a, b int) int { return a + b }",
		"language": "go",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var response codegen.ReviewOutcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response.Review, "sums two integers")
}

// =============================================================================
// GenerateTests Tests
// =============================================================================

func TestGenerateTests_Success(t *testing.T) {
	stub := &stubPipeline{
		testGen: &codegen.TestGenerationOutcome{
			TestFiles: []*datatypes.GeneratedFile{
				datatypes.NewGeneratedFile("src/util.test.ts", "test('x', () => {})", datatypes.FileTypeTest, "typescript", ""),
			},
			TokensUsed: 11,
		},
	}
	router := newGenerateRouter(stub)

	w := postJSON(t, router, "/v1/generate/test", map[string]any{
		"files": []map[string]any{
			{
				"path":      "src/util.ts",
				"content":   "export const x = 1",
				"language":  "typescript",
				"file_type": "source",
			},
		},
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var response codegen.TestGenerationOutcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.TestFiles, 1)
	assert.Equal(t, "src/util.test.ts", response.TestFiles[0].Path)
}

func TestGenerateTests_EmptyFiles(t *testing.T) {
	router := newGenerateRouter(&stubPipeline{})

	w := postJSON(t, router, "/v1/generate/test", map[string]any{
		"files": []map[string]any{},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateTests_InvalidSource(t *testing.T) {
	stub := &stubPipeline{
		testGenErr: codegen.ErrInvalidRequest,
	}
	router := newGenerateRouter(stub)

	w := postJSON(t, router, "/v1/generate/test", map[string]any{
		"files": []map[string]any{
			{"path": "src/util.ts"},
		},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
