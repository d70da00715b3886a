package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trailsec/ragtrail/internal/trace"
)

// Document is one retrieved context chunk.
type Document struct {
	ID    string
	Text  string
	Score float64
}

// Retriever fetches context documents for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Document, error)
	// Params describes the retriever configuration for audit records.
	Params() map[string]any
}

// Generation is the output of one generation call.
type Generation struct {
	// Texts holds the candidate answers, in the order the model produced
	// them. May be empty if the model returned no usable text.
	Texts []string
	Model string
}

// Generator produces an answer from a rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Generation, error)
	// Params describes the generator configuration for audit records.
	Params() map[string]any
}

// Answer is the result of one pipeline invocation.
type Answer struct {
	// TraceID correlates this answer with its audit records.
	TraceID    string
	Text       string
	Candidates []string
	Documents  []Document
}

const defaultPromptTemplate = `Answer the question using only the context below.

Context:
%s

Question: %s`

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver registers the lifecycle observer.
func WithObserver(obs trace.Observer) Option {
	return func(p *Pipeline) { p.observer = obs }
}

// WithPromptTemplate overrides the prompt template. It must contain two %s
// verbs: context then question.
func WithPromptTemplate(tmpl string) Option {
	return func(p *Pipeline) { p.promptTemplate = tmpl }
}

// WithMetadata attaches caller metadata to every run snapshot.
func WithMetadata(md map[string]string) Option {
	return func(p *Pipeline) { p.metadata = md }
}

// Pipeline composes a retriever and a generator. Safe for concurrent Invoke
// calls: all per-run state lives on the stack.
type Pipeline struct {
	retriever      Retriever
	generator      Generator
	observer       trace.Observer
	promptTemplate string
	metadata       map[string]string
}

// New creates a pipeline. Without WithObserver the pipeline runs unobserved.
func New(retriever Retriever, generator Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		retriever:      retriever,
		generator:      generator,
		observer:       trace.NopObserver{},
		promptTemplate: defaultPromptTemplate,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Invoke answers one question, notifying the observer at each stage boundary.
func (p *Pipeline) Invoke(ctx context.Context, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("pipeline: empty question")
	}

	traceID := uuid.New().String()
	rootID := uuid.New().String()

	docs, err := p.retrieve(ctx, traceID, rootID, question)
	if err != nil {
		return nil, err
	}

	prompt := p.renderPrompt(docs, question)

	gen, err := p.generate(ctx, traceID, rootID, prompt)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		TraceID:    traceID,
		Candidates: gen.Texts,
		Documents:  docs,
	}
	if len(gen.Texts) > 0 {
		answer.Text = gen.Texts[0]
	}
	return answer, nil
}

func (p *Pipeline) retrieve(ctx context.Context, traceID, rootID, question string) ([]Document, error) {
	run := trace.Run{
		ID:        uuid.New().String(),
		TraceID:   traceID,
		ParentID:  rootID,
		Name:      "retrieve",
		Stage:     trace.StageRetriever,
		StartTime: time.Now(),
		Inputs:    map[string]any{"query": question},
		Params:    p.retriever.Params(),
		Metadata:  p.metadata,
	}
	if err := p.observer.OnRetrievalStart(ctx, &run); err != nil {
		return nil, fmt.Errorf("pipeline: retrieval start observer: %w", err)
	}

	docs, retrieveErr := p.retriever.Retrieve(ctx, question)

	end := run
	end.EndTime = time.Now()
	end.Outputs = retrievalOutputs(docs, retrieveErr)
	if err := p.observer.OnRetrievalEnd(ctx, &end); err != nil {
		return nil, fmt.Errorf("pipeline: retrieval end observer: %w", err)
	}

	if retrieveErr != nil {
		return nil, fmt.Errorf("pipeline: retrieve: %w", retrieveErr)
	}
	return docs, nil
}

func (p *Pipeline) generate(ctx context.Context, traceID, rootID, prompt string) (*Generation, error) {
	run := trace.Run{
		ID:        uuid.New().String(),
		TraceID:   traceID,
		ParentID:  rootID,
		Name:      "generate",
		Stage:     trace.StageLLM,
		StartTime: time.Now(),
		Inputs:    map[string]any{"prompt": prompt},
		Params:    p.generator.Params(),
		Metadata:  p.metadata,
	}
	if err := p.observer.OnGenerationStart(ctx, &run); err != nil {
		return nil, fmt.Errorf("pipeline: generation start observer: %w", err)
	}

	gen, genErr := p.generator.Generate(ctx, prompt)

	end := run
	end.EndTime = time.Now()
	end.Outputs = generationOutputs(gen, genErr)
	if err := p.observer.OnGenerationEnd(ctx, &end); err != nil {
		return nil, fmt.Errorf("pipeline: generation end observer: %w", err)
	}

	if genErr != nil {
		return nil, fmt.Errorf("pipeline: generate: %w", genErr)
	}
	return gen, nil
}

func (p *Pipeline) renderPrompt(docs []Document, question string) string {
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(d.Text)
	}
	return fmt.Sprintf(p.promptTemplate, b.String(), question)
}

func retrievalOutputs(docs []Document, err error) map[string]any {
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = map[string]any{"id": d.ID, "text": d.Text, "score": d.Score}
	}
	return map[string]any{"documents": out}
}

func generationOutputs(gen *Generation, err error) map[string]any {
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	gens := make([]any, len(gen.Texts))
	for i, text := range gen.Texts {
		gens[i] = map[string]any{"text": text}
	}
	return map[string]any{"generations": gens, "model": gen.Model}
}
