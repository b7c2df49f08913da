package services

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// UnderstandingConfig tunes query understanding.
type UnderstandingConfig struct {
	// MinTokens is the smallest usable query.
	MinTokens int

	// IntentFloor is the confidence below which the intent is Unclassified.
	IntentFloor float64

	// MaxKeywords caps the extracted keywords.
	MaxKeywords int

	// Vocabulary extends the built-in library and framework names.
	Vocabulary []string
}

// DefaultUnderstandingConfig returns the built-in understanding settings.
func DefaultUnderstandingConfig() UnderstandingConfig {
	return UnderstandingConfig{
		MinTokens:   2,
		IntentFloor: 0.5,
		MaxKeywords: 10,
	}
}

// UnderstandingService turns raw question text into a QueryRepresentation.
type UnderstandingService struct {
	cfg        UnderstandingConfig
	normaliser driven.Normaliser
	embedder   driven.Embedder
	vocabulary map[string]bool

	mu        sync.Mutex
	centroids map[domain.Intent][]float32
}

// NewUnderstandingService creates the service.
// normaliser strips markup from the query; embedder may be nil, which disables
// both the query embedding and the embedding intent classifier.
func NewUnderstandingService(
	cfg UnderstandingConfig,
	normaliser driven.Normaliser,
	embedder driven.Embedder,
) *UnderstandingService {
	defaults := DefaultUnderstandingConfig()
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = defaults.MinTokens
	}
	if cfg.MaxKeywords <= 0 {
		cfg.MaxKeywords = defaults.MaxKeywords
	}

	vocab := make(map[string]bool, len(knownLibraries)+len(cfg.Vocabulary))
	for _, name := range knownLibraries {
		vocab[name] = true
	}
	for _, name := range cfg.Vocabulary {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			vocab[name] = true
		}
	}

	return &UnderstandingService{
		cfg:        cfg,
		normaliser: normaliser,
		embedder:   embedder,
		vocabulary: vocab,
	}
}

// Understand normalises, tokenises, classifies and embeds a raw question.
// Queries with fewer than MinTokens distinct tokens fail with domain.ErrQueryTooShort.
func (s *UnderstandingService) Understand(ctx context.Context, raw string) (*domain.QueryRepresentation, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrQueryTooShort)
	}

	text, code := raw, []string(nil)
	if s.normaliser != nil {
		res := s.normaliser.Normalise(raw)
		text, code = res.Text, res.Code
	}

	normalized := strings.ToLower(normalizeWhitespace(text))
	textTokens := words(normalized)
	codeTokens := extractCodeTokens(code)

	if n := countTokens(textTokens, codeTokens); n < s.cfg.MinTokens {
		return nil, fmt.Errorf("%w: %d token(s), need at least %d", domain.ErrQueryTooShort, n, s.cfg.MinTokens)
	}

	entities := s.extractEntities(text + "\n" + strings.Join(code, "\n"))

	allTokens := append([]string(nil), textTokens...)
	for _, tok := range codeTokens {
		allTokens = append(allTokens, strings.ToLower(tok))
	}
	keywords := extractKeywords(allTokens, s.cfg.MaxKeywords)

	embedding, err := s.embed(ctx, strings.TrimSpace(normalized+" "+strings.Join(codeTokens, " ")))
	if err != nil {
		return nil, err
	}

	intent, confidence := s.classify(ctx, textTokens, entities, embedding)

	rep := &domain.QueryRepresentation{
		Intent:     intent,
		Confidence: confidence,
		Entities:   entities,
		Keywords:   keywords,
		CodeTokens: codeTokens,
		Normalized: normalized,
		Embedding:  embedding,
	}
	logger.Debug("understand: intent=%s confidence=%.2f entities=%v keywords=%v",
		rep.Intent, rep.Confidence, rep.Entities, rep.Keywords)
	return rep, nil
}

// embed returns the query vector. Embedder failures degrade to lexical-only retrieval.
func (s *UnderstandingService) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil || text == "" {
		return nil, nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn("understand: embedding failed, continuing lexical-only: %v", err)
		return nil, nil
	}
	if len(vecs) != 1 {
		logger.Warn("understand: embedder returned %d vectors for one text", len(vecs))
		return nil, nil
	}
	return vecs[0], nil
}

// countTokens counts text tokens plus code tokens not already present in the text.
func countTokens(textTokens, codeTokens []string) int {
	seen := make(map[string]bool, len(textTokens))
	for _, tok := range textTokens {
		seen[tok] = true
	}
	n := len(textTokens)
	for _, tok := range codeTokens {
		if lower := strings.ToLower(tok); !seen[lower] {
			seen[lower] = true
			n++
		}
	}
	return n
}

var codeTokenPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.-]*[A-Za-z0-9_]|[A-Za-z_]`)

// extractCodeTokens returns distinct identifiers found in code, in order.
func extractCodeTokens(code []string) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, block := range code {
		for _, tok := range codeTokenPattern.FindAllString(block, -1) {
			if len(tok) < 2 || seen[tok] {
				continue
			}
			seen[tok] = true
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// --- entities ---

type entityMatch struct {
	pos   int
	value string
}

var (
	errnoPattern     = regexp.MustCompile(`\bE[A-Z]{2,}[A-Z0-9]*\b`)
	errorTypePattern = regexp.MustCompile(`\b[A-Z][A-Za-z0-9]*(?:Error|Exception)\b`)
	errConstPattern  = regexp.MustCompile(`\bERR_[A-Z0-9_]+\b`)
	codeIDPattern    = regexp.MustCompile(`\b[A-Z]{2,5}[0-9]{3,5}\b`)
	hexCodePattern   = regexp.MustCompile(`\b0x[0-9A-Fa-f]{6,}\b`)
	fileLinePattern  = regexp.MustCompile(`\b[\w-]+\.(?:go|py|js|mjs|ts|jsx|tsx|java|kt|rb|rs|cs|php|c|cc|cpp|h):\d+\b`)
	pyFramePattern   = regexp.MustCompile(`File "([^"]+)", line (\d+)`)
)

// notErrno are capitalised words the errno pattern would otherwise catch.
var notErrno = map[string]bool{
	"ERR": true, "ERROR": true, "ERRORS": true, "EXIT": true, "ELSE": true, "ENV": true,
	"EXPORT": true, "EMPTY": true, "END": true, "ENUM": true,
}

// extractEntities finds error codes, stack frames and known library names,
// ordered by first appearance and deduplicated case-insensitively.
func (s *UnderstandingService) extractEntities(text string) []string {
	var matches []entityMatch
	collect := func(re *regexp.Regexp, skip map[string]bool) {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			v := text[loc[0]:loc[1]]
			if !skip[v] {
				matches = append(matches, entityMatch{pos: loc[0], value: v})
			}
		}
	}
	collect(errnoPattern, notErrno)
	collect(errorTypePattern, nil)
	collect(errConstPattern, nil)
	collect(codeIDPattern, nil)
	collect(hexCodePattern, nil)
	collect(fileLinePattern, nil)

	for _, m := range pyFramePattern.FindAllStringSubmatchIndex(text, -1) {
		file := text[m[2]:m[3]]
		if i := strings.LastIndexAny(file, `/\`); i >= 0 {
			file = file[i+1:]
		}
		matches = append(matches, entityMatch{pos: m[0], value: file + ":" + text[m[4]:m[5]]})
	}

	for _, loc := range wordPattern.FindAllStringIndex(text, -1) {
		w := trimWord(strings.ToLower(text[loc[0]:loc[1]]))
		if s.vocabulary[w] {
			matches = append(matches, entityMatch{pos: loc[0], value: w})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })

	seen := make(map[string]bool, len(matches))
	var entities []string
	for _, m := range matches {
		key := strings.ToLower(m.value)
		if seen[key] {
			continue
		}
		seen[key] = true
		entities = append(entities, m.value)
	}
	return entities
}

// isDiagnostic reports whether an entity is an error code or stack frame
// rather than a library name.
func (s *UnderstandingService) isDiagnostic(entity string) bool {
	return !s.vocabulary[entity]
}

// --- keywords ---

// extractKeywords drops stopwords and ranks the rest by frequency,
// ties broken by first appearance.
func extractKeywords(tokens []string, limit int) []string {
	type kw struct {
		word  string
		count int
		first int
	}
	index := make(map[string]*kw)
	var order []*kw
	for i, tok := range tokens {
		if len(tok) < 2 || stopwords[tok] || isNumber(tok) {
			continue
		}
		if k, ok := index[tok]; ok {
			k.count++
			continue
		}
		k := &kw{word: tok, count: 1, first: i}
		index[tok] = k
		order = append(order, k)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	keywords := make([]string, len(order))
	for i, k := range order {
		keywords[i] = k.word
	}
	return keywords
}

func isNumber(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}

// --- intent ---

// classify applies keyword rules first and falls back to the embedding
// classifier when the rules are inconclusive.
func (s *UnderstandingService) classify(
	ctx context.Context,
	tokens []string,
	entities []string,
	embedding []float32,
) (domain.Intent, float64) {
	intent, confidence, conclusive := s.classifyByRules(tokens, entities)
	if !conclusive || confidence < s.cfg.IntentFloor {
		if embIntent, embConfidence, ok := s.classifyByEmbedding(ctx, embedding); ok && embConfidence > confidence {
			logger.Debug("understand: rules inconclusive (%s %.2f), embedding classifier chose %s %.2f",
				intent, confidence, embIntent, embConfidence)
			intent, confidence = embIntent, embConfidence
		}
	}
	if confidence < s.cfg.IntentFloor {
		return domain.IntentUnclassified, confidence
	}
	return intent, confidence
}

// classifyByRules scores each intent by its matched triggers.
// Confidence is the winner's share of all matched weight, damped when little matched.
func (s *UnderstandingService) classifyByRules(tokens []string, entities []string) (domain.Intent, float64, bool) {
	tokenSet := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		tokenSet[tok] = true
	}
	padded := " " + strings.Join(tokens, " ") + " "

	scores := make(map[domain.Intent]float64, len(intentRules))
	for _, rule := range intentRules {
		for trigger, weight := range rule.triggers {
			if strings.Contains(trigger, " ") {
				if strings.Contains(padded, " "+trigger+" ") {
					scores[rule.intent] += weight
				}
			} else if tokenSet[trigger] {
				scores[rule.intent] += weight
			}
		}
	}
	for _, e := range entities {
		if s.isDiagnostic(e) {
			scores[domain.IntentTroubleshooting]++
			break
		}
	}

	var best, runnerUp domain.Intent
	var total float64
	for _, intent := range domain.ClassifiedIntents() {
		score := scores[intent]
		total += score
		switch {
		case best == "" || score > scores[best]:
			runnerUp, best = best, intent
		case runnerUp == "" || score > scores[runnerUp]:
			runnerUp = intent
		}
	}

	top := scores[best]
	if top == 0 {
		return domain.IntentUnclassified, 0, false
	}
	confidence := (top / total) * (top / (top + 1))
	conclusive := top > scores[runnerUp]
	return best, confidence, conclusive
}

// classifyByEmbedding picks the intent whose prototype centroid is closest to the query.
func (s *UnderstandingService) classifyByEmbedding(ctx context.Context, embedding []float32) (domain.Intent, float64, bool) {
	if len(embedding) == 0 {
		return "", 0, false
	}
	centroids := s.intentCentroids(ctx)
	if len(centroids) == 0 {
		return "", 0, false
	}

	best, bestScore := domain.Intent(""), -1.0
	for _, intent := range domain.ClassifiedIntents() {
		c, ok := centroids[intent]
		if !ok {
			continue
		}
		if score := cosine(embedding, c); score > bestScore {
			best, bestScore = intent, score
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, clamp01(bestScore), true
}

// intentCentroids embeds the prototype questions once per process.
func (s *UnderstandingService) intentCentroids(ctx context.Context) map[domain.Intent][]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.centroids != nil {
		return s.centroids
	}

	centroids := make(map[domain.Intent][]float32, len(intentPrototypes))
	for _, intent := range domain.ClassifiedIntents() {
		vecs, err := s.embedder.Embed(ctx, intentPrototypes[intent])
		if err != nil {
			logger.Warn("understand: embedding intent prototypes: %v", err)
			return nil
		}
		centroids[intent] = centroid(vecs)
	}
	s.centroids = centroids
	return centroids
}

func centroid(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	sum := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		for i := range sum {
			if i < len(v) {
				sum[i] += float64(v[i])
			}
		}
	}
	var norm float64
	for _, x := range sum {
		norm += x * x
	}
	out := make([]float32, len(sum))
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range sum {
		out[i] = float32(x / norm)
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
