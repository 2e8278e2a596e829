package rag

import (
	"context"
	"strings"

	"amazon-scraper/logger"
	"amazon-scraper/storage"
)

// Default number of nearest matches used as answer context.
const DefaultTopK = 3

// Service ties the repository, the semantic index, and the chatbot into the
// question-answering flow: bulk-load products into the index, then answer
// free-text questions against the nearest matches.
type Service struct {
	repo    storage.ProductRepository
	index   *Index
	chatbot Answerer
	log     *logger.Logger
}

// Answer is a question's result: the free-text answer plus the matches that
// provided its context.
type Answer struct {
	Response string  `json:"response"`
	Matches  []Match `json:"matches"`
}

// NewService creates a Service.
func NewService(repo storage.ProductRepository, index *Index, chatbot Answerer, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		index:   index,
		chatbot: chatbot,
		log:     log.WithComponent("rag"),
	}
}

// Initialize loads every stored product into the semantic index and returns
// the number of indexed documents.
func (s *Service) Initialize(ctx context.Context) (int, error) {
	products, err := s.repo.FetchAll(ctx)
	if err != nil {
		return 0, err
	}
	return s.index.Load(ctx, products)
}

// Query answers a free-text question using the top index matches as context.
func (s *Service) Query(ctx context.Context, question string) (*Answer, error) {
	matches, err := s.index.Query(ctx, question, DefaultTopK)
	if err != nil {
		return nil, err
	}

	lines := make([]string, len(matches))
	for i, m := range matches {
		lines[i] = m.Document.Text()
	}

	response, err := s.chatbot.Ask(ctx, question, strings.Join(lines, "\n"))
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("question", question).Int("context_matches", len(matches)).Msg("Question answered")
	return &Answer{Response: response, Matches: matches}, nil
}
