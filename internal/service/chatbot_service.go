package service

import (
	"context"

	"docassist-be/internal/dto"
	"docassist-be/internal/pkg/logger"
	"docassist-be/pkg/rag"
)

// IChatbotService defines the chatbot service interface
type IChatbotService interface {
	// SendMessage never fails: provider faults come back as a degraded answer.
	SendMessage(ctx context.Context, userId int64, request *dto.SendMessageRequest) *dto.SendMessageResponse
}

// QueryProcessor is satisfied by rag.Orchestrator.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, q rag.ChatQuery) rag.ChatAnswer
}

type chatbotService struct {
	orchestrator QueryProcessor
	log          logger.ILogger
}

func NewChatbotService(orchestrator QueryProcessor, log logger.ILogger) IChatbotService {
	return &chatbotService{
		orchestrator: orchestrator,
		log:          log,
	}
}

func (s *chatbotService) SendMessage(ctx context.Context, userId int64, request *dto.SendMessageRequest) *dto.SendMessageResponse {
	s.log.Info("CHAT", "Chat request received", map[string]interface{}{
		"user_id":    userId,
		"project_id": request.ProjectId,
		"session_id": request.SessionId,
		"query_len":  len(request.Query),
	})

	answer := s.orchestrator.ProcessQuery(ctx, rag.ChatQuery{
		Query:     request.Query,
		UserID:    userId,
		ProjectID: request.ProjectId,
		SessionID: request.SessionId,
	})

	links := make([]dto.ChatLinkResponse, 0, len(answer.Links))
	for _, l := range answer.Links {
		links = append(links, dto.ChatLinkResponse{
			Type:  l.Type,
			Id:    l.ID,
			Title: l.Title,
			Url:   l.URL,
		})
	}

	return &dto.SendMessageResponse{
		Answer:         answer.Answer,
		Links:          links,
		Confidence:     answer.Confidence,
		FallbackKBLink: answer.FallbackKBLink,
	}
}
