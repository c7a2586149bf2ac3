package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/jbrukh/bayesian"

	"cardspend/internal/cache"
	"cardspend/internal/core"
	"cardspend/internal/storage"
)

// Suggestion sources.
const (
	SourceMemory     = "memory"
	SourceClassifier = "classifier"
)

// Suggestion is a proposed category for a description. Category is empty
// when nothing could be proposed.
type Suggestion struct {
	Category string `json:"category,omitempty"`
	Source   string `json:"source,omitempty"`
}

// SuggestService proposes categories for descriptions the user has not
// labelled yet. An exact memory hit wins; otherwise a TF-IDF naive Bayes
// classifier is trained on the user's labelled expenses and memory entries.
type SuggestService struct {
	expenses storage.ExpenseStore
	memory   storage.MemoryStore
	training *cache.LRU[int64, []labelled]
}

type SuggestOption func(*SuggestService)

// WithTrainingCache keeps up to size users' training sets for ttl. Memory
// hits are never cached.
func WithTrainingCache(size int, ttl time.Duration) SuggestOption {
	return func(s *SuggestService) {
		s.training = cache.NewLRU[int64, []labelled](size, ttl)
	}
}

func NewSuggestService(expenses storage.ExpenseStore, memory storage.MemoryStore, opts ...SuggestOption) *SuggestService {
	s := &SuggestService{expenses: expenses, memory: memory}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the training-set cache for sweeping, or nil without one.
func (s *SuggestService) Cache() cache.Cleaner {
	if s.training == nil {
		return nil
	}
	return s.training
}

func (s *SuggestService) Suggest(ctx context.Context, userID int64, description string) (Suggestion, error) {
	if err := checkDescriptionLength(description); err != nil {
		return Suggestion{}, err
	}
	if core.NormalizeDescription(description) == "" {
		return Suggestion{}, invalid("description is required")
	}

	category, found, err := recall(ctx, s.memory, userID, description)
	if err != nil {
		return Suggestion{}, err
	}
	if found {
		return Suggestion{Category: category, Source: SourceMemory}, nil
	}

	docs, err := s.cachedTrainingSet(ctx, userID)
	if err != nil {
		return Suggestion{}, err
	}
	if category, ok := classify(docs, descriptionTerms(description)); ok {
		return Suggestion{Category: category, Source: SourceClassifier}, nil
	}
	return Suggestion{}, nil
}

type labelled struct {
	terms    []string
	category string
}

func (s *SuggestService) cachedTrainingSet(ctx context.Context, userID int64) ([]labelled, error) {
	if s.training == nil {
		return s.trainingSet(ctx, userID)
	}
	if docs, ok := s.training.Get(userID); ok {
		return docs, nil
	}
	docs, err := s.trainingSet(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.training.Set(userID, docs)
	return docs, nil
}

func (s *SuggestService) trainingSet(ctx context.Context, userID int64) ([]labelled, error) {
	expenses, err := s.expenses.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	entries, err := s.memory.ListMemory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list category memory: %w", err)
	}

	docs := make([]labelled, 0, len(expenses)+len(entries))
	for _, e := range expenses {
		if e.Category == "" {
			continue
		}
		docs = append(docs, labelled{terms: descriptionTerms(e.Description), category: e.Category})
	}
	for _, m := range entries {
		docs = append(docs, labelled{terms: descriptionTerms(m.Description), category: m.Category})
	}
	return docs, nil
}

// classify needs at least two categories and at least one query term seen
// in training. Ties produce no answer.
func classify(docs []labelled, query []string) (string, bool) {
	if len(query) == 0 {
		return "", false
	}

	known := make(map[string]bool)
	seen := make(map[string]bool)
	var names []string
	for _, d := range docs {
		if len(d.terms) == 0 {
			continue
		}
		for _, t := range d.terms {
			known[t] = true
		}
		if !seen[d.category] {
			seen[d.category] = true
			names = append(names, d.category)
		}
	}
	if len(names) < 2 || !anyKnown(query, known) {
		return "", false
	}
	sort.Strings(names)

	classes := make([]bayesian.Class, len(names))
	for i, n := range names {
		classes[i] = bayesian.Class(n)
	}
	cl := bayesian.NewClassifierTfIdf(classes...)
	for _, d := range docs {
		if len(d.terms) > 0 {
			cl.Learn(d.terms, bayesian.Class(d.category))
		}
	}
	cl.ConvertTermsFreqToTfIdf()

	_, best, strict := cl.LogScores(query)
	if !strict {
		return "", false
	}
	return names[best], true
}

// descriptionTerms lower-cases the normalized description and splits it on
// anything that is not a letter or digit.
func descriptionTerms(description string) []string {
	return strings.FieldsFunc(strings.ToLower(core.NormalizeDescription(description)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func anyKnown(terms []string, known map[string]bool) bool {
	for _, t := range terms {
		if known[t] {
			return true
		}
	}
	return false
}
