package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/velora-ai/velora-backend/internal/clients/openai"
	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
	"github.com/velora-ai/velora-backend/internal/repos"
)

const (
	// historyWindow bounds prompt cost: older turns are dropped, not
	// summarized.
	historyWindow = 8

	chatTemperature = 0.7
	chatMaxTokens   = 500

	searchToolName = "search_store_content"

	defaultErrorReply = "Sorry, I'm having trouble answering right now. Please try again in a moment."
	fallbackAck       = "Thanks! Is there anything else I can help you find in the store?"

	maxToolResults      = 5
	maxRecommendedItems = 3
)

// LLMClient is the language-model capability the orchestrator consumes.
// *openai.Client satisfies this.
type LLMClient interface {
	ChatCompletion(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error)
}

type TurnResult struct {
	AssistantText string         `json:"assistant_text"`
	ToolMetadata  map[string]any `json:"tool_metadata,omitempty"`
}

type ChatService interface {
	HandleTurn(ctx context.Context, tenant *domain.Tenant, sessionID string, fingerprint string, userMessage string) (*TurnResult, error)
}

type chatService struct {
	log       *logger.Logger
	sessions  repos.ChatSessionRepo
	messages  repos.ChatMessageRepo
	retrieval RetrievalService
	analytics AnalyticsService
	llm       LLMClient
}

func NewChatService(baseLog *logger.Logger, sessions repos.ChatSessionRepo, messages repos.ChatMessageRepo, retrieval RetrievalService, analytics AnalyticsService, llm LLMClient) ChatService {
	return &chatService{
		log:       baseLog.With("service", "ChatService"),
		sessions:  sessions,
		messages:  messages,
		retrieval: retrieval,
		analytics: analytics,
		llm:       llm,
	}
}

// HandleTurn runs one conversation turn: load-or-create session, persist the
// user message, call the model, dispatch at most one retrieval tool round,
// persist the assistant message, then record analytics. Unrecoverable
// failures surface as the tenant's configured (or the default) error string
// and never leak internal detail; the user message is already persisted by
// then so history stays consistent.
func (s *chatService) HandleTurn(ctx context.Context, tenant *domain.Tenant, sessionID string, fingerprint string, userMessage string) (*TurnResult, error) {
	session, err := s.sessions.GetOrCreate(ctx, nil, &domain.ChatSession{
		TenantID:    tenant.ID,
		SessionID:   sessionID,
		Fingerprint: fingerprint,
		Locale:      tenant.Locale,
		Active:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	// Sliding expiry: any turn keeps the session alive for another window.
	if err := s.sessions.UpdateFields(ctx, nil, session.ID, map[string]interface{}{
		"expires_at": time.Now().Add(domain.SessionTTL),
	}); err != nil {
		s.log.Warn("Session expiry refresh dropped", "session_id", sessionID, "error", err)
	}

	if _, err := s.messages.Append(ctx, nil, &domain.ChatMessage{
		SessionID: session.ID,
		Role:      domain.RoleUser,
		Content:   userMessage,
	}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	if s.llm == nil {
		s.log.Warn("Turn refused: no model credential configured", "tenant_id", tenant.ID)
		return &TurnResult{AssistantText: s.errorReply(tenant)}, nil
	}

	prompt, err := s.assemblePrompt(ctx, tenant, session)
	if err != nil {
		s.log.Error("Prompt assembly failed", "session_id", sessionID, "error", err)
		return &TurnResult{AssistantText: s.errorReply(tenant)}, nil
	}

	resp, err := s.llm.ChatCompletion(ctx, openai.ChatRequest{
		Messages:    prompt,
		Tools:       []openai.Tool{searchToolSchema()},
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		s.log.Error("Model call failed", "session_id", sessionID, "error", err)
		return &TurnResult{AssistantText: s.errorReply(tenant)}, nil
	}

	if len(resp.ToolCalls) > 0 {
		return s.runToolRound(ctx, tenant, session, prompt, resp, userMessage)
	}

	assistantText := strings.TrimSpace(resp.Content)
	if assistantText == "" {
		assistantText = fallbackAck
	}
	s.persistAssistant(ctx, session, assistantText, nil)
	s.analytics.RecordQuestion(ctx, tenant.ID, userMessage)
	return &TurnResult{AssistantText: assistantText}, nil
}

type searchToolArgs struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	Limit    int    `json:"limit"`
}

// runToolRound executes the single permitted retrieval round and the one
// follow-up model call. A follow-up failure degrades to a generic
// acknowledgement rather than an error.
func (s *chatService) runToolRound(ctx context.Context, tenant *domain.Tenant, session *domain.ChatSession, prompt []openai.Message, resp *openai.ChatResponse, userMessage string) (*TurnResult, error) {
	call := resp.ToolCalls[0]
	if call.Function.Name != searchToolName {
		s.log.Error("Model requested unknown tool", "tool", call.Function.Name)
		return &TurnResult{AssistantText: s.errorReply(tenant)}, nil
	}

	var args searchToolArgs
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || strings.TrimSpace(args.Query) == "" {
		s.log.Error("Malformed tool arguments", "arguments", call.Function.Arguments, "error", err)
		return &TurnResult{AssistantText: s.errorReply(tenant)}, nil
	}

	var categories []string
	if c := strings.TrimSpace(args.Category); c != "" {
		categories = []string{c}
	}
	limit := args.Limit
	if limit <= 0 || limit > maxToolResults {
		limit = maxToolResults
	}

	ranked, err := s.retrieval.Ranked(ctx, tenant.ID, args.Query, categories, limit)
	if err != nil {
		s.log.Error("Tool retrieval failed", "query", args.Query, "error", err)
		return &TurnResult{AssistantText: s.errorReply(tenant)}, nil
	}

	toolPayload := serializeToolResults(ranked)
	metadata := map[string]any{
		"tool":         searchToolName,
		"query":        args.Query,
		"result_count": len(ranked),
		"items":        toolItemsMetadata(ranked),
	}

	s.persistToolMessage(ctx, session, toolPayload, metadata)

	followUp := append(append([]openai.Message{}, prompt...),
		openai.Message{Role: domain.RoleAssistant, ToolCalls: resp.ToolCalls},
		openai.Message{Role: domain.RoleTool, ToolCallID: call.ID, Content: toolPayload},
	)
	// Exactly one follow-up call; no tools offered so the model cannot open
	// another round.
	second, err := s.llm.ChatCompletion(ctx, openai.ChatRequest{
		Messages:    followUp,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})

	assistantText := fallbackAck
	if err != nil {
		s.log.Warn("Follow-up model call failed, using fallback acknowledgement", "error", err)
	} else if t := strings.TrimSpace(second.Content); t != "" {
		assistantText = t
	}

	s.persistAssistant(ctx, session, assistantText, metadata)

	s.analytics.RecordQuestion(ctx, tenant.ID, userMessage)
	recommended := 0
	for _, r := range ranked {
		if r.Record.Category != domain.CategoryItem {
			continue
		}
		s.analytics.RecordProductExposure(ctx, tenant.ID, r.Record.ExternalID, r.Record.Title, ExposureRecommended)
		recommended++
		if recommended >= maxRecommendedItems {
			break
		}
	}

	return &TurnResult{AssistantText: assistantText, ToolMetadata: metadata}, nil
}

func (s *chatService) assemblePrompt(ctx context.Context, tenant *domain.Tenant, session *domain.ChatSession) ([]openai.Message, error) {
	history, err := s.messages.RecentBySession(ctx, nil, session.ID, historyWindow)
	if err != nil {
		return nil, err
	}

	out := make([]openai.Message, 0, len(history)+1)
	out = append(out, openai.Message{Role: "system", Content: systemPrompt(tenant)})
	for _, msg := range history {
		// Tool rows are projections of past retrievals; replaying them
		// without their paired tool_call ids would confuse the provider.
		if msg.Role != domain.RoleUser && msg.Role != domain.RoleAssistant {
			continue
		}
		out = append(out, openai.Message{Role: msg.Role, Content: msg.Content})
	}
	return out, nil
}

func systemPrompt(tenant *domain.Tenant) string {
	name := tenant.Name
	if name == "" {
		name = tenant.StoreDomain
	}
	var sb strings.Builder
	sb.WriteString("You are a shopping assistant embedded on a storefront. ")
	sb.WriteString("Answer only from the store's own content; when you need product, article, collection or page details, call the ")
	sb.WriteString(searchToolName)
	sb.WriteString(" tool first. If the store has nothing relevant, say so briefly and suggest browsing the store. Never invent products, prices or policies.\n\n")
	sb.WriteString("Store: " + name + "\n")
	sb.WriteString("Currency: " + tenant.Currency + "\n")
	sb.WriteString("Content categories: " + strings.Join(domain.KnownCategories(), ", ") + "\n")
	return sb.String()
}

func searchToolSchema() openai.Tool {
	return openai.Tool{
		Type: "function",
		Function: openai.ToolDefinition{
			Name:        searchToolName,
			Description: "Search the store's synced content (products, articles, collections, pages) for a free-text query.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Free-text search query.",
					},
					"category": map[string]any{
						"type":        "string",
						"enum":        domain.KnownCategories(),
						"description": "Optional category restriction.",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

type toolResultItem struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Excerpt  string `json:"excerpt,omitempty"`
	Price    string `json:"price,omitempty"`
	URL      string `json:"url,omitempty"`
}

func serializeToolResults(ranked []RankedRecord) string {
	items := make([]toolResultItem, 0, len(ranked))
	for _, r := range ranked {
		items = append(items, toolResultItem{
			Title:    r.Record.Title,
			Category: r.Record.Category,
			Excerpt:  r.Record.Excerpt,
			Price:    r.Record.Price,
			URL:      r.Record.URL,
		})
	}
	payload := map[string]any{"total": len(items), "results": items}
	raw, err := json.Marshal(payload)
	if err != nil {
		return `{"total":0,"results":[]}`
	}
	return string(raw)
}

func toolItemsMetadata(ranked []RankedRecord) []map[string]any {
	out := make([]map[string]any, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, map[string]any{
			"external_id": r.Record.ExternalID,
			"title":       r.Record.Title,
			"category":    r.Record.Category,
			"url":         r.Record.URL,
			"price":       r.Record.Price,
			"score":       r.Score,
		})
	}
	return out
}

func (s *chatService) persistAssistant(ctx context.Context, session *domain.ChatSession, content string, metadata map[string]any) {
	msg := &domain.ChatMessage{
		SessionID: session.ID,
		Role:      domain.RoleAssistant,
		Content:   content,
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			msg.Metadata = datatypes.JSON(raw)
		}
	}
	if _, err := s.messages.Append(ctx, nil, msg); err != nil {
		s.log.Error("Failed to persist assistant message", "error", err)
	}
}

func (s *chatService) persistToolMessage(ctx context.Context, session *domain.ChatSession, content string, metadata map[string]any) {
	msg := &domain.ChatMessage{
		SessionID: session.ID,
		Role:      domain.RoleTool,
		Content:   content,
	}
	if raw, err := json.Marshal(metadata); err == nil {
		msg.Metadata = datatypes.JSON(raw)
	}
	if _, err := s.messages.Append(ctx, nil, msg); err != nil {
		s.log.Error("Failed to persist tool message", "error", err)
	}
}

func (s *chatService) errorReply(tenant *domain.Tenant) string {
	if r := strings.TrimSpace(tenant.ErrorReply); r != "" {
		return r
	}
	return defaultErrorReply
}
